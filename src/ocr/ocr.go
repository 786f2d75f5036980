package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"strings"

	"camera-ocr-llm/src/llm"
)

// Recognizer is the external OCR collaborator. A blank result means the
// image holds no text; it is not an error.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, img image.Image) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}

var ErrNilImage = errors.New("nil image")

// IsBlank reports whether text counts as "no text found".
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// LLM recognizes text with the OpenRouter vision model configured via llm.Init.
// The caller's ctx bounds the request.
type LLM struct{}

func (r LLM) Recognize(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", ErrNilImage
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	debugSave(buf.Bytes(), img.Bounds())

	text, err := llm.QueryVision(ctx, buf.Bytes(), "image/png")
	if errors.Is(err, llm.ErrNoText) {
		return "", nil
	}
	return text, err
}

func debugSave(data []byte, b image.Rectangle) {
	if os.Getenv("OCR_DEBUG_SAVE_IMAGES") != "true" {
		return
	}
	name := fmt.Sprintf("debug_capture_%dx%d.png", b.Dx(), b.Dy())
	if err := os.WriteFile(name, data, 0600); err != nil {
		log.Printf("Warning: Could not save debug image: %v", err)
		return
	}
	log.Printf("DEBUG: Saved capture to %s (size: %d bytes)", name, len(data))
}
