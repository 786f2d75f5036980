package main

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"camera-ocr-llm/src/camera"
	"camera-ocr-llm/src/clipboard"
	"camera-ocr-llm/src/config"
	"camera-ocr-llm/src/eventloop"
	"camera-ocr-llm/src/gui"
	"camera-ocr-llm/src/logutil"
	"camera-ocr-llm/src/permission"
	"camera-ocr-llm/src/preview"
	"camera-ocr-llm/src/runtimeinit"
	"camera-ocr-llm/src/screen"
	"camera-ocr-llm/src/session"
	"camera-ocr-llm/src/tray"
	"camera-ocr-llm/src/worker"
)

const (
	appID        = "io.github.camera-ocr-llm"
	runOnceWarm  = 500 * time.Millisecond
	workerCount  = 2
	maxLogLength = 100
)

type mainOptions struct {
	runOnce    bool
	tray       bool
	stdout     bool
	source     string
	file       string
	apiKeyPath string
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"camera-ocr-llm"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "camera-ocr-llm",
		Short:         "Capture a photo and read the text in it",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*opts)
		},
	}
	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Capture once, copy the text to the clipboard and exit")
	cmd.Flags().BoolVar(&opts.tray, "tray", false, "Run resident in the system tray instead of a window")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "With --run-once, print the text instead of copying it")
	cmd.Flags().StringVar(&opts.source, "source", "", "Camera source: device, screen or file")
	cmd.Flags().StringVar(&opts.file, "file", "", "Photo replayed by the file camera source")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	return cmd
}

var legacyFlags = []string{"run-once", "tray", "stdout", "source", "file", "api-key-path"}

// normalizeLegacyArgs maps Go-style single-dash long flags to cobra's form.
func normalizeLegacyArgs(args []string) []string {
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range legacyFlags {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}

func run(opts mainOptions) error {
	load := config.LoadOptions{
		APIKeyPathOverride:   opts.apiKeyPath,
		CameraSourceOverride: opts.source,
		CameraFileOverride:   opts.file,
	}
	if opts.file != "" && opts.source == "" {
		load.CameraSourceOverride = config.SourceFile
	}
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:          load,
		SetupLogging:         logutil.Setup,
		ShowBlockingLLMError: !opts.runOnce,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	switch {
	case opts.runOnce:
		return runOnce(ctx, cfg, opts.stdout)
	case opts.tray:
		return runTray(ctx, cfg)
	}
	return runWindow(ctx, cfg)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func resultTarget(cfg *config.Config) screen.Target {
	if cfg.CopyToClipboard {
		return session.ClipboardTarget{}
	}
	return nil
}

// host wires a controller to the loop and the worker pool.
type host struct {
	loop *eventloop.Loop
	pool *worker.Pool
	ctrl *screen.Controller
}

func newHost(cfg *config.Config, view screen.View, prompter permission.Prompter) (*host, error) {
	cam, err := runtimeinit.NewCamera(cfg)
	if err != nil {
		return nil, err
	}
	h := &host{loop: eventloop.New(), pool: worker.New(workerCount)}
	h.ctrl, err = screen.New(screen.Options{
		Camera:            cam,
		Recognizer:        runtimeinit.NewRecognizer(cfg),
		Permission:        runtimeinit.NewPermission(cfg, prompter),
		View:              view,
		Executor:          h.pool,
		Dispatch:          h.loop.Dispatch,
		Target:            resultTarget(cfg),
		CaptureDir:        cfg.CaptureDir,
		MaxPixels:         cfg.MaxImagePixels,
		RecognizeDeadline: time.Duration(cfg.OCRDeadlineSec) * time.Second,
	})
	if err != nil {
		h.pool.Close()
		return nil, err
	}
	return h, nil
}

// start runs the loop, creates the screen and listens for the hotkey. The
// returned func tears everything down and may be called more than once.
func (h *host) start(ctx context.Context, hotkey string) func() {
	ctx, stop := h.run(ctx)
	if err := h.loop.StartHotkey(ctx, hotkey, h.ctrl.OnCaptureButtonTap); err != nil {
		log.Printf("Hotkey disabled: %v", err)
	}
	return stop
}

func (h *host) run(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		if err := h.loop.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("event loop stopped: %v", err)
		}
	}()
	h.loop.Dispatch(func() { h.ctrl.OnCreate(ctx) })
	return ctx, sync.OnceFunc(func() {
		done := make(chan struct{})
		if !h.loop.Post(func() { h.ctrl.OnDestroy(); close(done) }) {
			close(done)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		cancel()
		h.pool.Close()
	})
}

func runWindow(ctx context.Context, cfg *config.Config) error {
	a := app.NewWithID(appID)
	w := gui.New(a)
	h, err := newHost(cfg, w, w)
	if err != nil {
		return err
	}
	rotation := preview.Rotation(cfg.DisplayRotation)
	w.OnTap = func() { h.loop.Dispatch(h.ctrl.OnCaptureButtonTap) }
	w.OnBack = func() {
		h.loop.Dispatch(func() {
			if !h.ctrl.OnBackPressed() {
				w.Finish()
			}
		})
	}
	w.OnResize = func(size image.Point) {
		h.loop.Dispatch(func() { h.ctrl.OnLayoutChange(size, rotation) })
	}

	stop := h.start(ctx, cfg.Hotkey)
	defer stop()
	w.OnClose = stop
	defer finishOnCancel(ctx, w.Finish)()
	log.Printf("Hotkey: %s", cfg.Hotkey)
	w.ShowAndRun()
	return nil
}

// finishOnCancel closes the view when ctx ends first. Call the returned
// func once the view has closed by itself.
func finishOnCancel(ctx context.Context, finish func()) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			finish()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func runTray(ctx context.Context, cfg *config.Config) error {
	var (
		h    *host
		t    *tray.Tray
		stop func()
	)
	t = tray.New(tray.Config{
		Tooltip: fmt.Sprintf("%s - Press %s to capture", tray.Title, cfg.Hotkey),
		OnTap:   func() { h.loop.Dispatch(h.ctrl.OnCaptureButtonTap) },
		OnCopy: func() {
			if text := t.Text(); text != "" {
				if err := clipboard.Write(text); err != nil {
					t.Notify(screen.NoticeDeliveryFailed)
				}
			}
		},
		OnExit: func() {
			if stop != nil {
				stop()
			}
		},
	})
	// The tray has no dialog; consent must come from CAMERA_CONSENT.
	h, err := newHost(cfg, t, nil)
	if err != nil {
		return err
	}
	stop = h.start(ctx, cfg.Hotkey)
	defer stop()
	defer finishOnCancel(ctx, t.Finish)()
	t.Run()
	return nil
}

func runOnce(ctx context.Context, cfg *config.Config, stdout bool) error {
	cam, err := runtimeinit.NewCamera(cfg)
	if err != nil {
		return err
	}
	gate := runtimeinit.NewPermission(cfg, permission.ReaderPrompter{In: os.Stdin, Out: os.Stderr})
	if !gate.Granted() {
		ok, err := gate.Request(ctx)
		if err != nil {
			return fmt.Errorf("camera permission: %w", err)
		}
		if !ok {
			return fmt.Errorf("%s", screen.NoticePermissionDenied)
		}
	}

	var target session.ResultTarget = session.ClipboardTarget{}
	if stdout {
		target = session.StdoutTarget{}
	}
	log.Printf("Running capture once with OCR deadline %ds", cfg.OCRDeadlineSec)
	res, err := session.Execute(ctx, session.Options{
		Deadline:   time.Duration(cfg.OCRDeadlineSec) * time.Second,
		Camera:     cam,
		Capture:    camera.CaptureConfig{AspectRatio: camera.Square, Mode: camera.MaxQuality},
		Recognizer: runtimeinit.NewRecognizer(cfg),
		Target:     target,
		CaptureDir: cfg.CaptureDir,
		MaxPixels:  cfg.MaxImagePixels,
		Warmup:     runOnceWarm,
	})
	if err != nil {
		return err
	}
	log.Printf("OCR extracted text (%d chars): %q", len(res.Text), sanitizeForLogging(res.Text))
	return nil
}

// sanitizeForLogging removes potentially dangerous characters from text for safe logging
func sanitizeForLogging(text string) string {
	if r := []rune(text); len(r) > maxLogLength {
		text = string(r[:maxLogLength]) + "..."
	}
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			b.WriteString("\\n")
		case r == '\t':
			b.WriteString("\\t")
		case r < 32 || r == 127:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
