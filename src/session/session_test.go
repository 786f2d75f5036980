package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"camera-ocr-llm/src/camera"
	"camera-ocr-llm/src/ocr"
)

type recordingTarget struct {
	success []string
	failure []error
}

func (t *recordingTarget) OnSuccess(text string) error {
	t.success = append(t.success, text)
	return nil
}

func (t *recordingTarget) OnFailure(err error) error {
	t.failure = append(t.failure, err)
	return nil
}

func writePhoto(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.Black)
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := camera.WriteJPEG(path, img, 90); err != nil {
		t.Fatal(err)
	}
	return path
}

func recognizer(text string, err error) ocr.RecognizerFunc {
	return func(ctx context.Context, img image.Image) (string, error) { return text, err }
}

func TestExecuteFromCamera(t *testing.T) {
	src := writePhoto(t, 16, 8)
	dir := t.TempDir()
	target := &recordingTarget{}
	res, err := Execute(context.Background(), Options{
		Camera:     &camera.File{Path: src},
		Recognizer: recognizer("EXIT", nil),
		Target:     target,
		CaptureDir: dir,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Text != "EXIT" || res.Size != image.Pt(16, 8) {
		t.Errorf("Unexpected result %+v", res)
	}
	if len(target.success) != 1 {
		t.Errorf("Expected one success, got %v", target.success)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected capture to be deleted, found %d files", len(entries))
	}
}

func TestExecuteFileKeepsSource(t *testing.T) {
	src := writePhoto(t, 4, 4)
	var out bytes.Buffer
	res, err := ExecuteFile(context.Background(), src, Options{
		Recognizer: recognizer("hello", nil),
		Target:     StdoutTarget{Writer: &out},
	})
	if err != nil || res.Text != "hello" || out.String() != "hello" {
		t.Fatalf("Unexpected result %+v %v %q", res, err, out.String())
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("Source file must be kept: %v", err)
	}
}

func TestBlankTextIsErrNoText(t *testing.T) {
	target := &recordingTarget{}
	_, err := ExecuteFile(context.Background(), writePhoto(t, 4, 4), Options{
		Recognizer: recognizer(" \n", nil),
		Target:     target,
	})
	if !errors.Is(err, ErrNoText) {
		t.Errorf("Expected ErrNoText, got %v", err)
	}
	if len(target.success) != 0 || len(target.failure) != 1 {
		t.Errorf("Expected one failure report, got %+v", target)
	}
}

func TestRecognitionError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ExecuteFile(context.Background(), writePhoto(t, 4, 4), Options{
		Recognizer: recognizer("", boom),
		Target:     DiscardTarget{},
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped recognizer error, got %v", err)
	}
}

func TestUnreadableImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	if err := os.WriteFile(path, []byte("nope"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ExecuteFile(context.Background(), path, Options{Recognizer: recognizer("x", nil), Target: DiscardTarget{}}); err == nil {
		t.Error("Expected decode error")
	}
}

func TestBindFailure(t *testing.T) {
	_, err := Execute(context.Background(), Options{
		Camera:     &camera.File{Path: filepath.Join(t.TempDir(), "missing.jpg")},
		Recognizer: recognizer("x", nil),
		Target:     DiscardTarget{},
	})
	if err == nil {
		t.Error("Expected bind error")
	}
}

func TestValidation(t *testing.T) {
	if _, err := Execute(context.Background(), Options{}); err == nil {
		t.Error("Expected error without camera")
	}
	if _, err := ExecuteFile(context.Background(), "x", Options{Recognizer: recognizer("", nil)}); err == nil {
		t.Error("Expected error without target")
	}
}
