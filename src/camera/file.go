package camera

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"camera-ocr-llm/src/orient"
)

// File is a camera that "sees" a fixed photo on disk. Captures copy the
// original bytes, EXIF included, so the orientation path is exercised.
type File struct {
	Path string
	// Interval between repeated preview frames; zero sends a single frame.
	Interval time.Duration

	mu    sync.Mutex
	bound bool
}

func NewFile(path string) *File {
	return &File{Path: path, Interval: time.Second}
}

func (c *File) Bind(ctx context.Context, preview PreviewConfig, capture CaptureConfig, frames FrameSink) error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("open camera file %s: %w", c.Path, err)
	}
	frame, _, err := orient.Upright(data, 0)
	if err != nil {
		return fmt.Errorf("decode camera file %s: %w", c.Path, err)
	}
	fitted := Fit(frame, preview)

	c.mu.Lock()
	c.bound = true
	c.mu.Unlock()
	log.Printf("camera: file source %s bound", c.Path)

	go func() {
		defer func() {
			c.mu.Lock()
			c.bound = false
			c.mu.Unlock()
			log.Printf("camera: file source %s unbound", c.Path)
		}()
		if frames != nil {
			frames(fitted)
		}
		if c.Interval <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(c.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if frames != nil {
					frames(fitted)
				}
			}
		}
	}()
	return nil
}

func (c *File) TakePicture(ctx context.Context, path string) error {
	c.mu.Lock()
	bound := c.bound
	c.mu.Unlock()
	if !bound {
		return &CaptureError{Code: ErrorCameraClosed, Message: "camera is not bound", Err: ErrNotBound}
	}
	if err := ctx.Err(); err != nil {
		return &CaptureError{Code: ErrorCameraClosed, Message: "capture cancelled", Err: err}
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return &CaptureError{Code: ErrorFrameUnavailable, Message: "source photo unreadable", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &CaptureError{Code: ErrorFileIO, Message: "cannot create capture directory", Err: err}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return &CaptureError{Code: ErrorFileIO, Message: "cannot write capture file", Err: err}
	}
	return nil
}
