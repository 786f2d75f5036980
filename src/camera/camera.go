// Package camera defines the camera service the screen controller drives:
// a preview stream and a still-capture stream bound to a lifecycle context.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Rational is an aspect ratio such as 1:1 or 4:3.
type Rational struct {
	Num, Den int
}

var Square = Rational{1, 1}

// CaptureMode trades capture latency against image quality.
type CaptureMode int

const (
	MinLatency CaptureMode = iota
	MaxQuality
)

// PreviewConfig describes the continuous preview stream.
type PreviewConfig struct {
	AspectRatio Rational
	Resolution  image.Point
}

// CaptureConfig describes the on-demand still-capture stream.
type CaptureConfig struct {
	AspectRatio Rational
	Mode        CaptureMode
}

// DefaultPreview is a 1:1, 640x640 preview.
var DefaultPreview = PreviewConfig{AspectRatio: Square, Resolution: image.Pt(640, 640)}

// DefaultCapture is a 1:1 minimum-latency still capture.
var DefaultCapture = CaptureConfig{AspectRatio: Square, Mode: MinLatency}

// FrameSink receives preview frames. It is called from the camera's own
// goroutine and must not block for long.
type FrameSink func(frame image.Image)

// Camera is the external camera collaborator.
type Camera interface {
	// Bind starts preview and still capture. Both stop when ctx is done.
	Bind(ctx context.Context, preview PreviewConfig, capture CaptureConfig, frames FrameSink) error
	// TakePicture writes one still frame as JPEG to path.
	// Failures are reported as *CaptureError.
	TakePicture(ctx context.Context, path string) error
}

// ErrorCode classifies capture failures.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota
	ErrorFileIO
	ErrorCameraClosed
	ErrorFrameUnavailable
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorFileIO:
		return "file_io"
	case ErrorCameraClosed:
		return "camera_closed"
	case ErrorFrameUnavailable:
		return "frame_unavailable"
	default:
		return "unknown"
	}
}

// ErrNotBound is wrapped by captures attempted outside a Bind lifetime.
var ErrNotBound = errors.New("camera not bound")

// CaptureError is the error(code, message) a failed still capture delivers.
type CaptureError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Message returns a human readable capture failure reason for err.
func Message(err error) string {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
