package screen

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/math/f64"

	"camera-ocr-llm/src/camera"
	"camera-ocr-llm/src/ocr"
	"camera-ocr-llm/src/preview"
	"camera-ocr-llm/src/worker"
)

type fakeView struct {
	label      string
	enabled    bool
	status     string
	selectable bool
	image      image.Image
	transforms []f64.Aff3
	notices    []string
	finished   bool
}

func (v *fakeView) SetButton(label string, enabled bool) { v.label, v.enabled = label, enabled }
func (v *fakeView) SetStatus(text string, selectable bool) {
	v.status, v.selectable = text, selectable
}
func (v *fakeView) ShowImage(img image.Image) { v.image = img }
func (v *fakeView) ShowFrame(img image.Image) {}
func (v *fakeView) SetPreviewTransform(m f64.Aff3) { v.transforms = append(v.transforms, m) }
func (v *fakeView) Notify(msg string) { v.notices = append(v.notices, msg) }
func (v *fakeView) Finish() { v.finished = true }

func (v *fakeView) lastNotice() string {
	if len(v.notices) == 0 {
		return ""
	}
	return v.notices[len(v.notices)-1]
}

type fakeCamera struct {
	binds   int
	bindErr error
	bindCtx context.Context
	paths   []string
	take    func(path string) error
}

func (c *fakeCamera) Bind(ctx context.Context, p camera.PreviewConfig, cc camera.CaptureConfig, frames camera.FrameSink) error {
	c.binds++
	c.bindCtx = ctx
	return c.bindErr
}

func (c *fakeCamera) TakePicture(ctx context.Context, path string) error {
	c.paths = append(c.paths, path)
	if c.take != nil {
		return c.take(path)
	}
	return camera.WriteJPEG(path, solid(8, 8), 90)
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 10, 10, 255})
		}
	}
	return img
}

// inlineExecutor runs jobs immediately; completions land in the queue so the
// test decides when the "UI thread" processes them.
type inlineExecutor struct {
	refuse bool
	names  []string
}

func (e *inlineExecutor) Submit(ctx context.Context, name string, run worker.Job) bool {
	if e.refuse {
		return false
	}
	e.names = append(e.names, name)
	run(ctx)
	return true
}

type queue struct{ fns []func() }

func (q *queue) dispatch(fn func()) { q.fns = append(q.fns, fn) }

func (q *queue) drain() {
	for len(q.fns) > 0 {
		fn := q.fns[0]
		q.fns = q.fns[1:]
		fn()
	}
}

type fakeGate struct {
	granted  bool
	answer   bool
	requests int
}

func (g *fakeGate) Granted() bool { return g.granted }
func (g *fakeGate) Request(ctx context.Context) (bool, error) {
	g.requests++
	return g.answer, nil
}

type recordingTarget struct{ texts []string }

func (t *recordingTarget) OnSuccess(text string) error {
	t.texts = append(t.texts, text)
	return nil
}

type harness struct {
	c      *Controller
	view   *fakeView
	cam    *fakeCamera
	q      *queue
	exec   *inlineExecutor
	states []State
	dir    string
}

func newHarness(t *testing.T, rec ocr.RecognizerFunc, gate *fakeGate) *harness {
	t.Helper()
	h := &harness{view: &fakeView{}, cam: &fakeCamera{}, q: &queue{}, exec: &inlineExecutor{}, dir: t.TempDir()}
	opts := Options{
		Camera:     h.cam,
		Recognizer: rec,
		View:       h.view,
		Executor:   h.exec,
		Dispatch:   h.q.dispatch,
		CaptureDir: h.dir,
		OnState:    func(s State) { h.states = append(h.states, s) },
	}
	if gate != nil {
		opts.Permission = gate
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.c = c
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c.OnCreate(ctx)
	h.q.drain()
	return h
}

func text(s string) ocr.RecognizerFunc {
	return func(ctx context.Context, img image.Image) (string, error) { return s, nil }
}

func (h *harness) capturesLeft(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected capture files to be deleted, found %d", len(entries))
	}
}

func TestCaptureToResult(t *testing.T) {
	h := newHarness(t, text("HELLO"), nil)
	target := &recordingTarget{}
	h.c.opts.Target = target

	if h.cam.binds != 1 {
		t.Fatalf("Expected camera bound once, got %d", h.cam.binds)
	}
	if h.view.label != LabelCapture || !h.view.enabled || h.view.status != StatusDefault {
		t.Fatalf("Unexpected idle view: %+v", h.view)
	}

	h.c.OnCaptureButtonTap()
	if h.c.State() != Capturing {
		t.Fatalf("Expected Capturing, got %s", h.c.State())
	}
	if h.view.label != LabelCapturing || h.view.enabled || h.view.status != StatusWait {
		t.Errorf("Unexpected capturing view: %+v", h.view)
	}
	if !strings.HasPrefix(filepath.Base(h.cam.paths[0]), "capture-") {
		t.Errorf("Unexpected capture path %q", h.cam.paths[0])
	}

	// capture completion
	h.q.fns[0]()
	h.q.fns = h.q.fns[1:]
	if h.c.State() != Processing {
		t.Fatalf("Expected Processing, got %s", h.c.State())
	}
	if h.view.image == nil || h.view.status != StatusProcessing || h.view.label != LabelReset || h.view.enabled {
		t.Errorf("Unexpected processing view: %+v", h.view)
	}
	h.capturesLeft(t)

	h.q.drain()
	if h.c.State() != Result {
		t.Fatalf("Expected Result, got %s", h.c.State())
	}
	if h.view.label != LabelReset || !h.view.enabled {
		t.Errorf("Expected enabled Reset button, got %q %v", h.view.label, h.view.enabled)
	}
	if h.view.status != "HELLO" || !h.view.selectable {
		t.Errorf("Expected selectable result text, got %q %v", h.view.status, h.view.selectable)
	}
	if len(target.texts) != 1 || target.texts[0] != "HELLO" {
		t.Errorf("Expected target to receive text, got %v", target.texts)
	}
}

func TestResetFromResult(t *testing.T) {
	h := newHarness(t, text("HELLO"), nil)
	h.c.OnCaptureButtonTap()
	h.q.drain()
	if h.c.State() != Result {
		t.Fatalf("Expected Result, got %s", h.c.State())
	}

	h.c.OnCaptureButtonTap()
	if h.c.State() != Idle {
		t.Fatalf("Expected Idle, got %s", h.c.State())
	}
	if h.view.image != nil {
		t.Error("Expected image to be cleared")
	}
	if h.view.status != StatusDefault || h.view.selectable {
		t.Errorf("Expected default status, got %q %v", h.view.status, h.view.selectable)
	}
	if h.view.label != LabelCapture || !h.view.enabled {
		t.Errorf("Expected enabled Capture button, got %q %v", h.view.label, h.view.enabled)
	}
}

func TestBlankTextIsNoTextFound(t *testing.T) {
	for _, s := range []string{"", "   ", "\n\t "} {
		h := newHarness(t, text(s), nil)
		h.c.OnCaptureButtonTap()
		h.q.drain()
		if h.c.State() != Idle {
			t.Errorf("%q: expected Idle, got %s", s, h.c.State())
		}
		if h.view.lastNotice() != NoticeNoText {
			t.Errorf("%q: expected no-text notice, got %v", s, h.view.notices)
		}
		for _, st := range h.states {
			if st == Result {
				t.Errorf("%q: must never reach Result", s)
			}
		}
	}
}

func TestPermissionDeniedFinishesWithoutBinding(t *testing.T) {
	gate := &fakeGate{granted: false, answer: false}
	h := newHarness(t, text("x"), gate)
	if gate.requests != 1 {
		t.Errorf("Expected one permission request, got %d", gate.requests)
	}
	if !h.view.finished {
		t.Error("Expected screen to finish")
	}
	if h.cam.binds != 0 {
		t.Errorf("Camera must not be bound, got %d binds", h.cam.binds)
	}
	if h.view.lastNotice() != NoticePermissionDenied {
		t.Errorf("Unexpected notices %v", h.view.notices)
	}
}

func TestPermissionGrantedOnRequest(t *testing.T) {
	gate := &fakeGate{granted: false, answer: true}
	h := newHarness(t, text("x"), gate)
	if h.view.finished || h.cam.binds != 1 {
		t.Errorf("Expected bound pipeline, finished=%v binds=%d", h.view.finished, h.cam.binds)
	}
}

func TestLayoutChangeWhileIdle(t *testing.T) {
	h := newHarness(t, text("x"), nil)
	before := len(h.states)

	h.c.OnLayoutChange(image.Pt(100, 100), preview.Rotation90)
	if len(h.view.transforms) != 1 {
		t.Fatalf("Expected one transform, got %d", len(h.view.transforms))
	}
	x, y := preview.Map(h.view.transforms[0], 0, 0)
	if x != 0 || y != 100 {
		t.Errorf("Expected (0,0) to map to (0,100), got (%v,%v)", x, y)
	}
	h.c.OnLayoutChange(image.Pt(100, 100), preview.Rotation(45))
	if len(h.view.transforms) != 1 {
		t.Error("Expected unknown rotation to be ignored")
	}
	if h.c.State() != Idle || len(h.states) != before {
		t.Errorf("Layout change must not touch state, got %s", h.c.State())
	}
}

func TestCaptureFailure(t *testing.T) {
	h := newHarness(t, text("x"), nil)
	h.cam.take = func(path string) error {
		return &camera.CaptureError{Code: camera.ErrorFrameUnavailable, Message: "no frame"}
	}
	h.c.OnCaptureButtonTap()
	h.q.drain()
	if h.c.State() != Idle {
		t.Errorf("Expected Idle, got %s", h.c.State())
	}
	if h.view.lastNotice() != "Photo capture failed: no frame" {
		t.Errorf("Unexpected notices %v", h.view.notices)
	}
	if h.states[len(h.states)-2] != Error {
		t.Errorf("Expected Error before Idle, got %v", h.states)
	}
}

func TestDecodeFailureDeletesFile(t *testing.T) {
	h := newHarness(t, text("x"), nil)
	h.cam.take = func(path string) error {
		return os.WriteFile(path, []byte("not a jpeg"), 0600)
	}
	h.c.OnCaptureButtonTap()
	h.q.drain()
	if h.c.State() != Idle || h.view.lastNotice() != NoticeLoadFailed {
		t.Errorf("Expected load failure, state=%s notices=%v", h.c.State(), h.view.notices)
	}
	h.capturesLeft(t)
}

func TestRecognitionFailure(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, img image.Image) (string, error) {
		return "", errors.New("model unavailable")
	}, nil)
	h.c.OnCaptureButtonTap()
	h.q.drain()
	if h.c.State() != Idle || h.view.lastNotice() != NoticeRecognitionFailed {
		t.Errorf("Expected recognition failure, state=%s notices=%v", h.c.State(), h.view.notices)
	}
	if h.view.label != LabelCapture || !h.view.enabled {
		t.Error("Expected capture to be re-enabled")
	}
}

func TestTapIgnoredWhileCapturing(t *testing.T) {
	h := newHarness(t, text("x"), nil)
	h.c.OnCaptureButtonTap()
	h.c.OnCaptureButtonTap()
	if len(h.cam.paths) != 1 {
		t.Errorf("Expected one capture in flight, got %d", len(h.cam.paths))
	}
}

func TestBackPressed(t *testing.T) {
	h := newHarness(t, text("LATE"), nil)
	if h.c.OnBackPressed() {
		t.Error("Back in Idle must not be consumed")
	}

	h.c.OnCaptureButtonTap()
	h.q.fns[0]()
	h.q.fns = h.q.fns[1:]
	if h.c.State() != Processing {
		t.Fatalf("Expected Processing, got %s", h.c.State())
	}
	if !h.c.OnBackPressed() {
		t.Error("Back in Processing must be consumed")
	}
	// The recognition completion from the abandoned cycle is dropped.
	h.q.drain()
	if h.c.State() != Idle || h.view.status != StatusDefault {
		t.Errorf("Expected stale result to be dropped, state=%s status=%q", h.c.State(), h.view.status)
	}
}

func TestStaleCaptureDeletesFile(t *testing.T) {
	h := newHarness(t, text("x"), nil)
	h.c.OnCaptureButtonTap()
	h.c.OnBackPressed()
	h.q.drain()
	if h.c.State() != Idle {
		t.Errorf("Expected Idle, got %s", h.c.State())
	}
	h.capturesLeft(t)
}

func TestBusyExecutor(t *testing.T) {
	h := newHarness(t, text("x"), nil)
	h.exec.refuse = true
	h.c.OnCaptureButtonTap()
	if h.c.State() != Idle || h.view.lastNotice() != NoticeBusy {
		t.Errorf("Expected busy notice, state=%s notices=%v", h.c.State(), h.view.notices)
	}
}

func TestBindFailureIsNotice(t *testing.T) {
	view := &fakeView{}
	c, err := New(Options{
		Camera:     &fakeCamera{bindErr: errors.New("no device")},
		Recognizer: text("x"),
		View:       view,
		Executor:   &inlineExecutor{},
		Dispatch:   func(fn func()) { fn() },
	})
	if err != nil {
		t.Fatal(err)
	}
	c.OnCreate(context.Background())
	if view.finished || !strings.HasPrefix(view.lastNotice(), "Camera unavailable") {
		t.Errorf("Expected camera notice, got %v", view.notices)
	}
	if view.label != LabelCapture || view.enabled {
		t.Errorf("Expected disabled Capture button, got %q %v", view.label, view.enabled)
	}

	c.OnCaptureButtonTap()
	cam := c.opts.Camera.(*fakeCamera)
	if c.State() != Idle || len(cam.paths) != 0 {
		t.Errorf("Tap on unbound camera must be ignored, state=%s pictures=%d", c.State(), len(cam.paths))
	}
}

func TestTapIgnoredWhilePermissionPending(t *testing.T) {
	view := &fakeView{}
	cam := &fakeCamera{}
	q := &queue{}
	gate := &fakeGate{granted: false, answer: true}
	c, err := New(Options{
		Camera:     cam,
		Recognizer: text("x"),
		Permission: gate,
		View:       view,
		Executor:   &inlineExecutor{},
		Dispatch:   q.dispatch,
		CaptureDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	c.OnCreate(context.Background())

	// The answer sits in the queue until the loop runs it.
	if cam.binds != 0 || view.enabled {
		t.Fatalf("Expected unbound camera and disabled button, binds=%d enabled=%v", cam.binds, view.enabled)
	}
	c.OnCaptureButtonTap()
	if c.State() != Idle || len(cam.paths) != 0 {
		t.Errorf("Tap before permission must be ignored, state=%s pictures=%d", c.State(), len(cam.paths))
	}

	q.drain()
	if cam.binds != 1 || view.label != LabelCapture || !view.enabled {
		t.Errorf("Expected enabled Capture after binding, binds=%d button=%q %v", cam.binds, view.label, view.enabled)
	}
	c.OnCaptureButtonTap()
	if c.State() != Capturing {
		t.Errorf("Expected Capturing once bound, got %s", c.State())
	}
}

func TestDestroyCancelsBindingAndCycle(t *testing.T) {
	var recCtx context.Context
	h := newHarness(t, func(ctx context.Context, img image.Image) (string, error) {
		recCtx = ctx
		return "LATE", nil
	}, nil)
	target := &recordingTarget{}
	h.c.opts.Target = target

	h.c.OnCaptureButtonTap()
	h.q.fns[0]()
	h.q.fns = h.q.fns[1:]
	if h.c.State() != Processing || recCtx == nil {
		t.Fatalf("Expected recognition in flight, state=%s", h.c.State())
	}

	h.c.OnDestroy()
	if h.cam.bindCtx.Err() == nil {
		t.Error("Expected bind context to be cancelled")
	}
	if recCtx.Err() == nil {
		t.Error("Expected cycle context to be cancelled")
	}

	h.q.drain()
	if h.c.State() == Result || h.view.status == "LATE" || len(target.texts) != 0 {
		t.Errorf("Expected late recognition to be dropped, state=%s status=%q", h.c.State(), h.view.status)
	}
	h.c.OnCaptureButtonTap()
	if len(h.cam.paths) != 1 {
		t.Errorf("Tap after destroy must be ignored, got %d pictures", len(h.cam.paths))
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("Expected error for missing collaborators")
	}
}

func TestRecognizeDeadline(t *testing.T) {
	var hasDeadline bool
	h := newHarness(t, func(ctx context.Context, img image.Image) (string, error) {
		_, hasDeadline = ctx.Deadline()
		return "x", nil
	}, nil)
	h.c.opts.RecognizeDeadline = time.Minute
	h.c.OnCaptureButtonTap()
	h.q.drain()
	if !hasDeadline {
		t.Error("Expected recognition to run under the configured deadline")
	}
}
