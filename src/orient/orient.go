// Package orient reads the EXIF orientation of captured photos and turns the
// decoded bitmap upright.
package orient

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation tag value (0x0112).
type Orientation int

const (
	Undefined      Orientation = 0
	Normal         Orientation = 1
	FlipHorizontal Orientation = 2
	Rotate180      Orientation = 3
	FlipVertical   Orientation = 4
	Transpose      Orientation = 5
	Rotate90       Orientation = 6 // 90 degrees clockwise
	Transverse     Orientation = 7
	Rotate270      Orientation = 8 // 270 degrees clockwise
)

func (o Orientation) String() string {
	switch o {
	case Normal:
		return "normal"
	case FlipHorizontal:
		return "flip-horizontal"
	case Rotate180:
		return "rotate-180"
	case FlipVertical:
		return "flip-vertical"
	case Transpose:
		return "transpose"
	case Rotate90:
		return "rotate-90"
	case Transverse:
		return "transverse"
	case Rotate270:
		return "rotate-270"
	default:
		return fmt.Sprintf("undefined(%d)", int(o))
	}
}

// ErrImageTooLarge is returned when a decode would exceed the pixel budget.
var ErrImageTooLarge = errors.New("image exceeds decode pixel budget")

// Read extracts the orientation tag. Missing or unreadable EXIF is Undefined.
func Read(r io.Reader) Orientation {
	x, err := exif.Decode(r)
	if err != nil || x == nil {
		return Undefined
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return Undefined
	}
	v, err := tag.Int(0)
	if err != nil {
		return Undefined
	}
	return Orientation(v)
}

// Apply returns img transformed so that its visual "up" is the physical up.
// Normal and unknown orientations return img itself.
func Apply(img image.Image, o Orientation) image.Image {
	switch o {
	case FlipHorizontal:
		return imaging.FlipH(img)
	case Rotate180:
		return imaging.Rotate180(img)
	case FlipVertical:
		return imaging.FlipV(img)
	case Transpose:
		return imaging.Transpose(img)
	case Rotate90:
		// imaging rotates counter-clockwise.
		return imaging.Rotate270(img)
	case Transverse:
		return imaging.Transverse(img)
	case Rotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Decode decodes data after checking its dimensions against maxPixels.
// maxPixels <= 0 disables the check.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrImageTooLarge)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Upright decodes an encoded photo and applies its EXIF orientation.
func Upright(data []byte, maxPixels int) (image.Image, Orientation, error) {
	o := Read(bytes.NewReader(data))
	img, err := Decode(data, maxPixels)
	if err != nil {
		return nil, o, err
	}
	return Apply(img, o), o, nil
}

// Load reads a photo from disk and returns it upright.
func Load(path string, maxPixels int) (image.Image, Orientation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Undefined, fmt.Errorf("read %s: %w", path, err)
	}
	return Upright(data, maxPixels)
}
