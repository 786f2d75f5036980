// Package screen is the camera OCR screen controller: it owns the capture
// state machine and coordinates the camera, the recognizer and the view.
//
// Every exported On* method must be called on the same goroutine (the event
// loop). Blocking collaborator calls run on the Executor and their
// completions come back through Dispatch.
package screen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/math/f64"

	"camera-ocr-llm/src/camera"
	"camera-ocr-llm/src/ocr"
	"camera-ocr-llm/src/orient"
	"camera-ocr-llm/src/permission"
	"camera-ocr-llm/src/preview"
	"camera-ocr-llm/src/worker"
)

type State int

const (
	Idle State = iota
	Capturing
	Processing
	Result
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capturing:
		return "Capturing"
	case Processing:
		return "Processing"
	case Result:
		return "Result"
	case Error:
		return "Error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	LabelCapture   = "Capture"
	LabelCapturing = "Capturing…"
	LabelReset     = "Reset"

	StatusDefault    = "Point the camera at some text and press Capture."
	StatusWait       = "Please wait…"
	StatusProcessing = "Processing…"
)

const (
	NoticePermissionDenied  = "Permissions not granted by the user."
	NoticeCaptureFailed     = "Photo capture failed: %s"
	NoticeCameraUnavailable = "Camera unavailable: %s"
	NoticeLoadFailed        = "Unable to load image"
	NoticeNoText            = "No characters found"
	NoticeRecognitionFailed = "Text recognition failed"
	NoticeBusy              = "Busy, please retry"
	NoticeDeliveryFailed    = "Clipboard error"
)

// View is what the controller renders to. ShowFrame is called from the
// camera's goroutine; everything else from the loop.
type View interface {
	SetButton(label string, enabled bool)
	SetStatus(text string, selectable bool)
	// ShowImage displays the corrected capture; nil clears it.
	ShowImage(img image.Image)
	ShowFrame(img image.Image)
	SetPreviewTransform(m f64.Aff3)
	Notify(msg string)
	Finish()
}

// Executor runs blocking work off the loop. *worker.Pool satisfies it.
type Executor interface {
	Submit(ctx context.Context, name string, run worker.Job) bool
}

// Target receives recognized text in Result, e.g. the clipboard.
type Target interface {
	OnSuccess(text string) error
}

type Options struct {
	Camera     camera.Camera
	Recognizer ocr.Recognizer
	// Permission nil means access is always granted.
	Permission permission.Gate
	View       View
	Executor   Executor
	Dispatch   func(func())
	Target     Target

	CaptureDir        string
	MaxPixels         int
	Preview           camera.PreviewConfig
	Capture           camera.CaptureConfig
	RecognizeDeadline time.Duration

	NewPath func(dir string) string
	// OnState observes every transition, including the transient Error.
	OnState func(State)
}

type Controller struct {
	opts Options

	state State
	gen   uint64

	life       context.Context
	lifeCancel context.CancelFunc
	cycle      context.CancelFunc
	cycleCtx   context.Context
	bound      bool
}

func New(opts Options) (*Controller, error) {
	switch {
	case opts.Camera == nil:
		return nil, errors.New("Camera is required")
	case opts.Recognizer == nil:
		return nil, errors.New("Recognizer is required")
	case opts.View == nil:
		return nil, errors.New("View is required")
	case opts.Executor == nil:
		return nil, errors.New("Executor is required")
	case opts.Dispatch == nil:
		return nil, errors.New("Dispatch is required")
	}
	if opts.CaptureDir == "" {
		opts.CaptureDir = os.TempDir()
	}
	if opts.Preview == (camera.PreviewConfig{}) {
		opts.Preview = camera.DefaultPreview
	}
	if opts.Capture == (camera.CaptureConfig{}) {
		opts.Capture = camera.DefaultCapture
	}
	if opts.NewPath == nil {
		opts.NewPath = capturePath
	}
	return &Controller{opts: opts, life: context.Background()}, nil
}

func capturePath(dir string) string {
	return filepath.Join(dir, "capture-"+uuid.NewString()+".jpg")
}

func (c *Controller) State() State { return c.state }

func (c *Controller) setState(s State) {
	if c.state != s {
		log.Printf("screen: %s -> %s", c.state, s)
	}
	c.state = s
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// OnCreate renders Idle and starts the pipeline, asking for permission first
// when it has not been granted yet.
func (c *Controller) OnCreate(ctx context.Context) {
	c.life, c.lifeCancel = context.WithCancel(ctx)
	c.reset()

	gate := c.opts.Permission
	if gate == nil || gate.Granted() {
		c.StartCapturePipeline()
		return
	}
	life := c.life
	ok := c.opts.Executor.Submit(life, "permission", func(ctx context.Context) {
		granted, err := gate.Request(ctx)
		c.opts.Dispatch(func() { c.OnPermissionResult(granted, err) })
	})
	if !ok {
		c.OnPermissionResult(false, errors.New("permission request could not be scheduled"))
	}
}

func (c *Controller) OnPermissionResult(granted bool, err error) {
	if err != nil {
		log.Printf("screen: permission request failed: %v", err)
	}
	if !granted {
		c.opts.View.Notify(NoticePermissionDenied)
		c.opts.View.Finish()
		return
	}
	c.StartCapturePipeline()
}

// OnLayoutChange keeps the preview aligned with the display rotation.
func (c *Controller) OnLayoutChange(size image.Point, rotation preview.Rotation) {
	m, ok := preview.Transform(size, rotation)
	if !ok {
		log.Printf("screen: ignoring layout change with rotation %d", rotation)
		return
	}
	c.opts.View.SetPreviewTransform(m)
}

func (c *Controller) StartCapturePipeline() {
	if c.bound {
		return
	}
	err := c.opts.Camera.Bind(c.life, c.opts.Preview, c.opts.Capture, c.opts.View.ShowFrame)
	if err != nil {
		log.Printf("screen: camera bind failed: %v", err)
		c.opts.View.Notify(fmt.Sprintf(NoticeCameraUnavailable, camera.Message(err)))
		return
	}
	c.bound = true
	if c.state == Idle {
		c.opts.View.SetButton(LabelCapture, true)
	}
	log.Printf("screen: capture pipeline bound (preview %dx%d, mode %v)",
		c.opts.Preview.Resolution.X, c.opts.Preview.Resolution.Y, c.opts.Capture.Mode)
}

func (c *Controller) OnCaptureButtonTap() {
	switch c.state {
	case Result:
		c.reset()
	case Idle:
		if !c.bound {
			log.Printf("screen: tap ignored, camera not bound")
			return
		}
		c.beginCapture()
	default:
		log.Printf("screen: tap ignored in %s", c.state)
	}
}

func (c *Controller) beginCapture() {
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.life)
	c.cycleCtx, c.cycle = ctx, cancel

	c.setState(Capturing)
	c.opts.View.SetStatus(StatusWait, false)
	c.opts.View.SetButton(LabelCapturing, false)

	if err := os.MkdirAll(c.opts.CaptureDir, 0700); err != nil {
		log.Printf("screen: capture dir: %v", err)
		c.fail(fmt.Sprintf(NoticeCaptureFailed, err.Error()))
		return
	}
	path := c.opts.NewPath(c.opts.CaptureDir)
	cam := c.opts.Camera
	ok := c.opts.Executor.Submit(ctx, "capture", func(ctx context.Context) {
		err := cam.TakePicture(ctx, path)
		c.opts.Dispatch(func() { c.OnCaptureComplete(gen, path, err) })
	})
	if !ok {
		c.fail(NoticeBusy)
	}
}

func (c *Controller) stale(gen uint64, want State) bool {
	return gen != c.gen || c.state != want
}

func (c *Controller) OnCaptureComplete(gen uint64, path string, err error) {
	if c.stale(gen, Capturing) {
		log.Printf("screen: dropping stale capture %d", gen)
		removeCapture(path)
		return
	}
	if err != nil {
		log.Printf("screen: photo capture failed: %v", err)
		removeCapture(path)
		c.fail(fmt.Sprintf(NoticeCaptureFailed, camera.Message(err)))
		return
	}

	img, o, derr := orient.Load(path, c.opts.MaxPixels)
	removeCapture(path)
	if derr != nil {
		log.Printf("screen: unable to load %s: %v", path, derr)
		c.fail(NoticeLoadFailed)
		return
	}
	b := img.Bounds()
	log.Printf("screen: capture %d decoded %dx%d, orientation %s", gen, b.Dx(), b.Dy(), o)

	c.opts.View.ShowImage(img)
	c.setState(Processing)
	c.opts.View.SetStatus(StatusProcessing, false)
	c.opts.View.SetButton(LabelReset, false)

	ctx := c.cycleCtx
	rec, deadline := c.opts.Recognizer, c.opts.RecognizeDeadline
	ok := c.opts.Executor.Submit(ctx, "recognize", func(ctx context.Context) {
		if deadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deadline)
			defer cancel()
		}
		text, err := rec.Recognize(ctx, img)
		c.opts.Dispatch(func() { c.OnRecognitionComplete(gen, text, err) })
	})
	if !ok {
		c.fail(NoticeBusy)
	}
}

func (c *Controller) OnRecognitionComplete(gen uint64, text string, err error) {
	if c.stale(gen, Processing) {
		log.Printf("screen: dropping stale recognition %d", gen)
		return
	}
	c.endCycle()
	if err != nil {
		log.Printf("screen: text recognition failed: %v", err)
		c.fail(NoticeRecognitionFailed)
		return
	}
	if ocr.IsBlank(text) {
		c.fail(NoticeNoText)
		return
	}

	log.Printf("screen: recognized %d characters", len(text))
	c.setState(Result)
	c.opts.View.SetStatus(text, true)
	c.opts.View.SetButton(LabelReset, true)
	if c.opts.Target != nil {
		if err := c.opts.Target.OnSuccess(text); err != nil {
			log.Printf("screen: result delivery failed: %v", err)
			c.opts.View.Notify(NoticeDeliveryFailed)
		}
	}
}

// OnBackPressed resets a non-Idle screen and reports whether it consumed the
// press. In Idle the host should close the screen.
func (c *Controller) OnBackPressed() bool {
	if c.state == Idle {
		return false
	}
	log.Printf("screen: back pressed in %s", c.state)
	c.reset()
	return true
}

// OnDestroy unbinds the camera and cancels the cycle. Completions still in
// flight are dropped.
func (c *Controller) OnDestroy() {
	c.gen++
	c.endCycle()
	if c.lifeCancel != nil {
		c.lifeCancel()
	}
	c.bound = false
	log.Printf("screen: destroyed")
}

func (c *Controller) fail(notice string) {
	c.setState(Error)
	c.opts.View.Notify(notice)
	c.reset()
}

func (c *Controller) reset() {
	c.endCycle()
	c.opts.View.ShowImage(nil)
	c.opts.View.SetStatus(StatusDefault, false)
	// Capture stays disabled until the camera is bound.
	c.opts.View.SetButton(LabelCapture, c.bound)
	c.setState(Idle)
}

func (c *Controller) endCycle() {
	if c.cycle != nil {
		c.cycle()
		c.cycle, c.cycleCtx = nil, nil
	}
}

func removeCapture(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("screen: failed to delete %s: %v", path, err)
	}
}
