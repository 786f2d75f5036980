package main

import (
	"context"
	"image"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"golang.org/x/image/math/f64"

	"camera-ocr-llm/src/camera"
	"camera-ocr-llm/src/eventloop"
	"camera-ocr-llm/src/ocr"
	"camera-ocr-llm/src/screen"
	"camera-ocr-llm/src/worker"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"camera-ocr-llm", "-run-once", "-api-key-path", "/tmp/key"},
			out:  []string{"camera-ocr-llm", "--run-once", "--api-key-path", "/tmp/key"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"camera-ocr-llm", "-run-once=true", "-source=screen"},
			out:  []string{"camera-ocr-llm", "--run-once=true", "--source=screen"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"camera-ocr-llm", "--tray", "--other", "-files"},
			out:  []string{"camera-ocr-llm", "--tray", "--other", "-files"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--run-once", "--stdout", "--source", "file", "--file", "p.jpg", "--api-key-path", "/tmp/key"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !opts.runOnce || !opts.stdout {
		t.Fatal("Expected runOnce and stdout")
	}
	if opts.source != "file" || opts.file != "p.jpg" {
		t.Fatalf("Unexpected source %q file %q", opts.source, opts.file)
	}
	if opts.apiKeyPath != "/tmp/key" {
		t.Fatalf("Expected apiKeyPath=/tmp/key, got %q", opts.apiKeyPath)
	}
}

func TestSanitizeForLogging(t *testing.T) {
	if got := sanitizeForLogging("a\nb\tc\x01"); got != `a\nb\tc?` {
		t.Errorf("Unexpected sanitized text %q", got)
	}
	long := sanitizeForLogging(strings.Repeat("x", 300))
	if len(long) != maxLogLength+3 {
		t.Errorf("Expected truncation to %d chars, got %d", maxLogLength+3, len(long))
	}
}

func TestSanitizeForLoggingKeepsRunesWhole(t *testing.T) {
	got := sanitizeForLogging(strings.Repeat("é", 150))
	if !utf8.ValidString(got) || strings.ContainsRune(got, utf8.RuneError) {
		t.Fatalf("Truncation split a rune: %q", got)
	}
	if want := strings.Repeat("é", maxLogLength) + "..."; got != want {
		t.Errorf("Expected %d runes plus ellipsis, got %d runes", maxLogLength, utf8.RuneCountInString(got))
	}
}

type bindRecorder struct{ bound chan context.Context }

func (c *bindRecorder) Bind(ctx context.Context, p camera.PreviewConfig, cc camera.CaptureConfig, frames camera.FrameSink) error {
	c.bound <- ctx
	return nil
}

func (c *bindRecorder) TakePicture(ctx context.Context, path string) error { return nil }

type nopView struct{}

func (nopView) SetButton(string, bool) {}
func (nopView) SetStatus(string, bool) {}
func (nopView) ShowImage(image.Image) {}
func (nopView) ShowFrame(image.Image) {}
func (nopView) SetPreviewTransform(m f64.Aff3) {}
func (nopView) Notify(string) {}
func (nopView) Finish() {}

func TestHostTeardownUnbindsOnce(t *testing.T) {
	cam := &bindRecorder{bound: make(chan context.Context, 1)}
	h := &host{loop: eventloop.New(), pool: worker.New(1)}
	rec := ocr.RecognizerFunc(func(ctx context.Context, img image.Image) (string, error) {
		return "", nil
	})
	ctrl, err := screen.New(screen.Options{
		Camera:     cam,
		Recognizer: rec,
		View:       nopView{},
		Executor:   h.pool,
		Dispatch:   h.loop.Dispatch,
		CaptureDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	h.ctrl = ctrl

	_, stop := h.run(context.Background())
	var bindCtx context.Context
	select {
	case bindCtx = <-cam.bound:
	case <-time.After(time.Second):
		t.Fatal("Expected the camera to be bound")
	}

	stop()
	stop()
	if bindCtx.Err() == nil {
		t.Error("Expected teardown to cancel the camera binding")
	}
}
