// Package tesseract recognizes text on-device with Tesseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer runs Tesseract in-process. A fresh client is used per call;
// gosseract clients are not safe for concurrent use.
type Recognizer struct {
	Languages []string
	// Variables are passed through to Tesseract (e.g. "tessedit_pageseg_mode").
	Variables map[string]string

	clientFactory func() *gosseract.Client
}

func New(languages ...string) *Recognizer {
	return &Recognizer{Languages: languages, clientFactory: gosseract.NewClient}
}

func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	factory := r.clientFactory
	if factory == nil {
		factory = gosseract.NewClient
	}
	c := factory()
	if err := r.configure(c, buf.Bytes()); err != nil {
		c.Close()
		return "", err
	}

	// Tesseract cannot be interrupted; run it aside and honour ctx.
	type result struct {
		text string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		defer c.Close()
		text, err := c.Text()
		resCh <- result{text: text, err: err}
	}()
	select {
	case res := <-resCh:
		if res.err != nil {
			return "", fmt.Errorf("recognize text: %w", res.err)
		}
		return strings.TrimSpace(res.text), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Recognizer) configure(c *gosseract.Client, data []byte) error {
	if len(r.Languages) > 0 {
		if err := c.SetLanguage(r.Languages...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}
	for k, v := range r.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	return nil
}
