// Package session runs one capture → correct → recognize cycle outside the
// interactive screen, for run-once and command line use.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"camera-ocr-llm/src/camera"
	"camera-ocr-llm/src/clipboard"
	"camera-ocr-llm/src/ocr"
	"camera-ocr-llm/src/orient"
)

var ErrNoText = errors.New("no characters found")

type ResultTarget interface {
	OnSuccess(text string) error
	OnFailure(err error) error
}

type Options struct {
	Deadline   time.Duration
	Camera     camera.Camera
	Capture    camera.CaptureConfig
	Recognizer ocr.Recognizer
	Target     ResultTarget
	CaptureDir string
	MaxPixels  int
	// Warmup is how long the camera runs before the still is taken, so
	// exposure can settle.
	Warmup time.Duration
}

type Result struct {
	Text        string
	Orientation orient.Orientation
	Size        image.Point
}

// Execute binds the camera, takes one still, and recognizes it. The
// temporary capture file is always removed.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Camera == nil {
		return Result{}, errors.New("Camera is required")
	}
	if err := validate(opts); err != nil {
		return Result{}, err
	}

	camCtx, stop := context.WithCancel(ctx)
	defer stop()
	capture := opts.Capture
	if capture == (camera.CaptureConfig{}) {
		capture = camera.DefaultCapture
	}
	if err := opts.Camera.Bind(camCtx, camera.DefaultPreview, capture, nil); err != nil {
		return Result{}, report(opts, fmt.Errorf("bind camera: %w", err))
	}
	if opts.Warmup > 0 {
		select {
		case <-ctx.Done():
			return Result{}, report(opts, ctx.Err())
		case <-time.After(opts.Warmup):
		}
	}

	dir := opts.CaptureDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return Result{}, report(opts, err)
	}
	path := filepath.Join(dir, "capture-"+uuid.NewString()+".jpg")
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("session: failed to delete %s: %v", path, err)
		}
	}()

	if err := opts.Camera.TakePicture(camCtx, path); err != nil {
		return Result{}, report(opts, fmt.Errorf("photo capture failed: %s: %w", camera.Message(err), err))
	}
	return run(ctx, opts, path)
}

// ExecuteFile recognizes an existing photo. The file is left in place.
func ExecuteFile(ctx context.Context, path string, opts Options) (Result, error) {
	if err := validate(opts); err != nil {
		return Result{}, err
	}
	return run(ctx, opts, path)
}

func validate(opts Options) error {
	if opts.Recognizer == nil {
		return errors.New("Recognizer is required")
	}
	if opts.Target == nil {
		return errors.New("Target is required")
	}
	return nil
}

func run(ctx context.Context, opts Options, path string) (Result, error) {
	img, o, err := orient.Load(path, opts.MaxPixels)
	if err != nil {
		return Result{}, report(opts, fmt.Errorf("unable to load image: %w", err))
	}
	res := Result{Orientation: o, Size: img.Bounds().Size()}
	log.Printf("session: %s decoded %dx%d, orientation %s", path, res.Size.X, res.Size.Y, o)

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	text, err := opts.Recognizer.Recognize(jobCtx, img)
	if err != nil {
		return res, report(opts, fmt.Errorf("text recognition failed: %w", err))
	}
	if ocr.IsBlank(text) {
		return res, report(opts, ErrNoText)
	}
	if err := opts.Target.OnSuccess(text); err != nil {
		return res, report(opts, err)
	}
	res.Text = text
	return res, nil
}

func report(opts Options, err error) error {
	if opts.Target != nil {
		_ = opts.Target.OnFailure(err)
	}
	return err
}

type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(text string) error {
	if err := clipboard.Write(text); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return nil
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(text string) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprint(w, text)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DiscardTarget keeps the text only in the returned Result.
type DiscardTarget struct{}

func (DiscardTarget) OnSuccess(text string) error { return nil }
func (DiscardTarget) OnFailure(err error) error { return nil }
