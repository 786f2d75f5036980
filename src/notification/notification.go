// Package notification shows transient notices (toasts) to the user.
package notification

import (
	"log"
	"sync"
	"unicode/utf8"
)

const maxBodyRunes = 200

// Sink displays one notice. The window and tray modes install their own.
type Sink func(title, body string)

var (
	mu   sync.RWMutex
	sink Sink
)

// SetSink replaces the display backend; nil restores log-only output.
func SetSink(s Sink) {
	mu.Lock()
	sink = s
	mu.Unlock()
}

// Show displays a notice; bodies longer than 200 characters are truncated.
func Show(title, body string) {
	body = truncate(body, maxBodyRunes)
	log.Printf("Notice: %s: %s", title, body)
	mu.RLock()
	s := sink
	mu.RUnlock()
	if s != nil {
		s(title, body)
	}
}

// ShowBlockingError reports a startup failure the user has to read.
func ShowBlockingError(title, message string) {
	Show(title, message)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
