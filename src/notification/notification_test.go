package notification

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestShowUsesSink(t *testing.T) {
	var gotTitle, gotBody string
	SetSink(func(title, body string) { gotTitle, gotBody = title, body })
	defer SetSink(nil)

	Show("Camera OCR", "No characters found")
	if gotTitle != "Camera OCR" || gotBody != "No characters found" {
		t.Errorf("Unexpected notice %q %q", gotTitle, gotBody)
	}
}

func TestShowTruncates(t *testing.T) {
	var gotBody string
	SetSink(func(title, body string) { gotBody = body })
	defer SetSink(nil)

	Show("t", strings.Repeat("ü", 250))
	if !strings.HasSuffix(gotBody, "...") || utf8.RuneCountInString(gotBody) != maxBodyRunes+3 {
		t.Errorf("Expected truncated body, got %d runes", utf8.RuneCountInString(gotBody))
	}
}

func TestShowWithoutSink(t *testing.T) {
	SetSink(nil)
	Show("t", "logged only")
}
