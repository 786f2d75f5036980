// Package screencam treats a display as the camera: the preview mirrors the
// screen and a still is a screenshot.
package screencam

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/kbinani/screenshot"

	"camera-ocr-llm/src/camera"
)

const previewInterval = 250 * time.Millisecond

type Camera struct {
	Display int

	mu      sync.Mutex
	bound   bool
	capture camera.CaptureConfig
}

func New(display int) *Camera {
	return &Camera{Display: display}
}

func (c *Camera) bounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	if c.Display < 0 || c.Display >= n {
		return image.Rectangle{}, fmt.Errorf("display %d out of range (%d active)", c.Display, n)
	}
	return screenshot.GetDisplayBounds(c.Display), nil
}

func (c *Camera) Bind(ctx context.Context, preview camera.PreviewConfig, capture camera.CaptureConfig, frames camera.FrameSink) error {
	if _, err := c.bounds(); err != nil {
		return err
	}
	c.mu.Lock()
	c.bound = true
	c.capture = capture
	c.mu.Unlock()
	log.Printf("camera: display %d bound", c.Display)

	go func() {
		ticker := time.NewTicker(previewInterval)
		defer ticker.Stop()
		defer func() {
			c.mu.Lock()
			c.bound = false
			c.mu.Unlock()
			log.Printf("camera: display %d unbound", c.Display)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if frames == nil {
				continue
			}
			img, err := screenshot.CaptureDisplay(c.Display)
			if err != nil {
				log.Printf("camera: preview grab failed: %v", err)
				continue
			}
			frames(camera.Fit(img, preview))
		}
	}()
	return nil
}

func (c *Camera) TakePicture(ctx context.Context, path string) error {
	c.mu.Lock()
	bound, cfg := c.bound, c.capture
	c.mu.Unlock()
	if !bound {
		return &camera.CaptureError{Code: camera.ErrorCameraClosed, Message: "camera is not bound", Err: camera.ErrNotBound}
	}
	if err := ctx.Err(); err != nil {
		return &camera.CaptureError{Code: camera.ErrorCameraClosed, Message: "capture cancelled", Err: err}
	}

	b, err := c.bounds()
	if err != nil {
		return &camera.CaptureError{Code: camera.ErrorFrameUnavailable, Message: "display unavailable", Err: err}
	}
	img, err := screenshot.CaptureRect(camera.CropRect(b, cfg.AspectRatio))
	if err != nil {
		return &camera.CaptureError{Code: camera.ErrorFrameUnavailable, Message: "screen grab failed", Err: err}
	}
	quality := 85
	if cfg.Mode == camera.MaxQuality {
		quality = 100
	}
	return camera.WriteJPEG(path, img, quality)
}
