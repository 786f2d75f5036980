// Package device drives a local webcam through OpenCV.
package device

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"camera-ocr-llm/src/camera"
)

const (
	previewInterval = 66 * time.Millisecond // ~15 fps
	// Frames discarded before a MaxQuality still so exposure settles.
	settleFrames = 5
)

// Camera is a webcam opened by OpenCV device index.
type Camera struct {
	ID int

	mu      sync.Mutex
	vc      *gocv.VideoCapture
	capture camera.CaptureConfig
}

func New(id int) *Camera {
	return &Camera{ID: id}
}

func (c *Camera) Bind(ctx context.Context, preview camera.PreviewConfig, capture camera.CaptureConfig, frames camera.FrameSink) error {
	vc, err := gocv.OpenVideoCapture(c.ID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.ID, err)
	}
	if preview.Resolution.X > 0 && preview.Resolution.Y > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(preview.Resolution.X))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(preview.Resolution.Y))
	}

	c.mu.Lock()
	if c.vc != nil {
		c.mu.Unlock()
		vc.Close()
		return fmt.Errorf("camera %d already bound", c.ID)
	}
	c.vc = vc
	c.capture = capture
	c.mu.Unlock()
	log.Printf("camera: device %d bound", c.ID)

	go c.previewLoop(ctx, preview, frames)
	return nil
}

func (c *Camera) previewLoop(ctx context.Context, preview camera.PreviewConfig, frames camera.FrameSink) {
	mat := gocv.NewMat()
	defer mat.Close()
	ticker := time.NewTicker(previewInterval)
	defer ticker.Stop()
	defer c.unbind()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if frames == nil {
			continue
		}
		c.mu.Lock()
		ok := c.vc != nil && c.vc.Read(&mat)
		c.mu.Unlock()
		if !ok || mat.Empty() {
			continue
		}
		img, err := mat.ToImage()
		if err != nil {
			log.Printf("camera: preview frame conversion failed: %v", err)
			continue
		}
		frames(camera.Fit(img, preview))
	}
}

func (c *Camera) unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc != nil {
		_ = c.vc.Close()
		c.vc = nil
	}
	log.Printf("camera: device %d unbound", c.ID)
}

func (c *Camera) TakePicture(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return &camera.CaptureError{Code: camera.ErrorCameraClosed, Message: "capture cancelled", Err: err}
	}

	mat := gocv.NewMat()
	defer mat.Close()

	c.mu.Lock()
	if c.vc == nil {
		c.mu.Unlock()
		return &camera.CaptureError{Code: camera.ErrorCameraClosed, Message: "camera is not bound", Err: camera.ErrNotBound}
	}
	if c.capture.Mode == camera.MaxQuality {
		c.vc.Grab(settleFrames)
	}
	ok := c.vc.Read(&mat)
	ratio := c.capture.AspectRatio
	c.mu.Unlock()

	if !ok || mat.Empty() {
		return &camera.CaptureError{Code: camera.ErrorFrameUnavailable, Message: "no frame from camera"}
	}

	crop := camera.CropRect(image.Rect(0, 0, mat.Cols(), mat.Rows()), ratio)
	region := mat.Region(crop)
	defer region.Close()

	img, err := region.ToImage()
	if err != nil {
		return &camera.CaptureError{Code: camera.ErrorUnknown, Message: "frame conversion failed", Err: err}
	}
	return camera.WriteJPEG(path, img, 95)
}
