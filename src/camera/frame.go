package camera

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// CropRect returns the largest centred rectangle inside b with the given
// aspect ratio. A zero ratio returns b.
func CropRect(b image.Rectangle, ratio Rational) image.Rectangle {
	if ratio.Num <= 0 || ratio.Den <= 0 || b.Empty() {
		return b
	}
	w, h := b.Dx(), b.Dy()
	// Widest crop at full height.
	cw := h * ratio.Num / ratio.Den
	ch := h
	if cw > w {
		cw = w
		ch = w * ratio.Den / ratio.Num
	}
	x0 := b.Min.X + (w-cw)/2
	y0 := b.Min.Y + (h-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// Crop returns img cropped to ratio.
func Crop(img image.Image, ratio Rational) image.Image {
	r := CropRect(img.Bounds(), ratio)
	if r == img.Bounds() {
		return img
	}
	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Copy(dst, image.Point{}, img, r, xdraw.Src, nil)
	return dst
}

// Fit crops img to the preview aspect ratio and scales it to the preview
// resolution.
func Fit(img image.Image, cfg PreviewConfig) image.Image {
	cropped := Crop(img, cfg.AspectRatio)
	if cfg.Resolution.X <= 0 || cfg.Resolution.Y <= 0 {
		return cropped
	}
	dst := image.NewRGBA(image.Rect(0, 0, cfg.Resolution.X, cfg.Resolution.Y))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), xdraw.Src, nil)
	return dst
}

// WriteJPEG encodes img to path, creating parent directories.
func WriteJPEG(path string, img image.Image, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &CaptureError{Code: ErrorFileIO, Message: "cannot create capture directory", Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &CaptureError{Code: ErrorFileIO, Message: "cannot create capture file", Err: err}
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		_ = os.Remove(path)
		return &CaptureError{Code: ErrorFileIO, Message: "cannot encode capture", Err: err}
	}
	if err := f.Close(); err != nil {
		return &CaptureError{Code: ErrorFileIO, Message: fmt.Sprintf("cannot close %s", path), Err: err}
	}
	return nil
}
