package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"camera-ocr-llm/src/camera"
	"camera-ocr-llm/src/camera/device"
	"camera-ocr-llm/src/camera/screencam"
	"camera-ocr-llm/src/clipboard"
	"camera-ocr-llm/src/config"
	"camera-ocr-llm/src/llm"
	"camera-ocr-llm/src/logutil"
	"camera-ocr-llm/src/notification"
	"camera-ocr-llm/src/ocr"
	"camera-ocr-llm/src/ocr/tesseract"
	"camera-ocr-llm/src/permission"
)

const pingTimeout = 10 * time.Second

type Options struct {
	LoadOptions          config.LoadOptions
	SetupLogging         func(bool)
	ShowBlockingLLMError bool
	// SkipPing disables the startup reachability check of the LLM.
	SkipPing bool
}

func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	if cfg.OCREngine == config.EngineLLM {
		if err := initLLM(cfg, opts); err != nil {
			return nil, err
		}
	}

	if cfg.CopyToClipboard {
		if err := clipboard.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	log.Printf("Camera OCR initialized: engine=%s source=%s capture dir=%s", cfg.OCREngine, cfg.CameraSource, cfg.CaptureDir)
	return cfg, nil
}

func initLLM(cfg *config.Config, opts Options) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
	}
	if cfg.Model == "" {
		return fmt.Errorf("MODEL is required. Please set it in your .env file")
	}

	llm.Init(&llm.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Providers: cfg.Providers,
		BaseURL:   cfg.BaseURL,
	})
	log.Printf("Using model %s with key %s", cfg.Model, logutil.RedactKey(cfg.APIKey))
	if opts.SkipPing {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := llm.Ping(ctx); err != nil {
		if opts.ShowBlockingLLMError {
			notification.ShowBlockingError("LLM unavailable", fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
		}
		return fmt.Errorf("startup check failed: %w", err)
	}
	log.Printf("LLM ping succeeded")
	return nil
}

// NewCamera builds the camera for the configured source.
func NewCamera(cfg *config.Config) (camera.Camera, error) {
	switch cfg.CameraSource {
	case config.SourceDevice:
		return device.New(cfg.CameraDevice), nil
	case config.SourceScreen:
		return screencam.New(cfg.CameraDevice), nil
	case config.SourceFile:
		if cfg.CameraFile == "" {
			return nil, fmt.Errorf("CAMERA_FILE is required for the file camera source")
		}
		return camera.NewFile(cfg.CameraFile), nil
	}
	return nil, fmt.Errorf("unknown camera source %q", cfg.CameraSource)
}

// NewRecognizer builds the configured OCR engine. The LLM engine needs a
// prior Bootstrap.
func NewRecognizer(cfg *config.Config) ocr.Recognizer {
	if cfg.OCREngine == config.EngineTesseract {
		r := tesseract.New(cfg.OCRLanguages...)
		r.Variables = cfg.TesseractVars
		return r
	}
	return ocr.LLM{}
}

// NewPermission builds the camera permission gate. A photo file needs no
// consent; live sources do unless CAMERA_CONSENT is set.
func NewPermission(cfg *config.Config, prompter permission.Prompter) permission.Gate {
	switch cfg.CameraSource {
	case config.SourceFile:
		return permission.NewCamera("", true, nil)
	case config.SourceDevice:
		return permission.NewCamera(DevicePath(cfg.CameraDevice), cfg.CameraConsent, prompter)
	}
	return permission.NewCamera("", cfg.CameraConsent, prompter)
}

// DevicePath is the device node behind a video capture index, or "" where
// the platform has none.
func DevicePath(id int) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	return fmt.Sprintf("/dev/video%d", id)
}
