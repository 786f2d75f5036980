package runtimeinit

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"camera-ocr-llm/src/camera"
	"camera-ocr-llm/src/camera/device"
	"camera-ocr-llm/src/camera/screencam"
	"camera-ocr-llm/src/config"
	"camera-ocr-llm/src/ocr"
	"camera-ocr-llm/src/ocr/tesseract"
)

func TestBootstrapRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OCR_ENGINE", "llm")
	t.Setenv("COPY_TO_CLIPBOARD", "")
	_, err := Bootstrap(Options{LoadOptions: config.LoadOptions{
		APIKeyPathOverride: filepath.Join(t.TempDir(), "missing"),
	}})
	if err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Errorf("Expected missing key error, got %v", err)
	}
}

func TestBootstrapTesseractNeedsNoKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OCR_ENGINE", "tesseract")
	t.Setenv("COPY_TO_CLIPBOARD", "")
	var logging []bool
	cfg, err := Bootstrap(Options{
		LoadOptions:  config.LoadOptions{APIKeyPathOverride: filepath.Join(t.TempDir(), "missing")},
		SetupLogging: func(b bool) { logging = append(logging, b) },
	})
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if cfg.OCREngine != config.EngineTesseract || len(logging) != 1 {
		t.Errorf("Unexpected bootstrap result %+v %v", cfg, logging)
	}
}

func TestNewCamera(t *testing.T) {
	cases := []struct {
		cfg  config.Config
		want string
	}{
		{config.Config{CameraSource: config.SourceDevice}, "device"},
		{config.Config{CameraSource: config.SourceScreen}, "screen"},
		{config.Config{CameraSource: config.SourceFile, CameraFile: "photo.jpg"}, "file"},
	}
	for _, tc := range cases {
		cam, err := NewCamera(&tc.cfg)
		if err != nil {
			t.Fatalf("%s: %v", tc.want, err)
		}
		switch cam.(type) {
		case *device.Camera:
			if tc.want != "device" {
				t.Errorf("Expected %s, got device", tc.want)
			}
		case *screencam.Camera:
			if tc.want != "screen" {
				t.Errorf("Expected %s, got screen", tc.want)
			}
		case *camera.File:
			if tc.want != "file" {
				t.Errorf("Expected %s, got file", tc.want)
			}
		}
	}
	if _, err := NewCamera(&config.Config{CameraSource: config.SourceFile}); err == nil {
		t.Error("Expected error for file source without path")
	}
	if _, err := NewCamera(&config.Config{CameraSource: "phone"}); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestNewRecognizer(t *testing.T) {
	vars := map[string]string{"tessedit_pageseg_mode": "6"}
	tr, ok := NewRecognizer(&config.Config{OCREngine: config.EngineTesseract, TesseractVars: vars}).(*tesseract.Recognizer)
	if !ok {
		t.Fatal("Expected tesseract recognizer")
	}
	if tr.Variables["tessedit_pageseg_mode"] != "6" {
		t.Errorf("Expected tesseract variables to be passed through, got %v", tr.Variables)
	}
	if _, ok := NewRecognizer(&config.Config{OCREngine: config.EngineLLM, OCRDeadlineSec: 5}).(ocr.LLM); !ok {
		t.Error("Expected LLM recognizer")
	}
}

func TestNewPermissionFileSourceIsGranted(t *testing.T) {
	if !NewPermission(&config.Config{CameraSource: config.SourceFile}, nil).Granted() {
		t.Error("Expected file source to be granted")
	}
	if NewPermission(&config.Config{CameraSource: config.SourceScreen}, nil).Granted() {
		t.Error("Expected screen source to need consent")
	}
}

func TestDevicePath(t *testing.T) {
	got := DevicePath(2)
	if runtime.GOOS == "linux" && got != "/dev/video2" {
		t.Errorf("Expected /dev/video2, got %q", got)
	}
}
