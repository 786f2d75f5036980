// Package tray is the tray-resident camera OCR screen: the first menu item
// is the capture/reset button and the tooltip carries the status.
package tray

import (
	"image"
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/getlantern/systray"
	"golang.org/x/image/math/f64"

	"camera-ocr-llm/src/notification"
)

const (
	Title         = "Camera OCR"
	maxStatusRune = 60
)

type Config struct {
	Tooltip string
	OnTap   func()
	OnCopy  func()
	OnExit  func()
}

// Tray implements the screen view on top of systray. The setters may be
// called before the menu exists; the latest values are applied on ready.
type Tray struct {
	cfg Config

	mu      sync.Mutex
	ready   bool
	button  *systray.MenuItem
	status  *systray.MenuItem
	copy    *systray.MenuItem
	label   string
	enabled bool
	text    string
	hasText bool
	// notice replaces the tooltip until the next capture starts.
	notice string
}

func New(cfg Config) *Tray {
	if cfg.Tooltip == "" {
		cfg.Tooltip = Title
	}
	return &Tray{cfg: cfg}
}

// Run blocks in the systray loop until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(Icon)
	systray.SetTitle(Title)

	button := systray.AddMenuItem("Capture", "Capture a photo and read its text")
	status := systray.AddMenuItem("", "Status")
	status.Disable()
	copyItem := systray.AddMenuItem("Copy text", "Copy the recognized text")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit the application")

	t.mu.Lock()
	t.button, t.status, t.copy = button, status, copyItem
	t.ready = true
	t.applyLocked()
	t.mu.Unlock()

	notification.SetSink(t.showNotice)

	go func() {
		for {
			select {
			case <-button.ClickedCh:
				if t.cfg.OnTap != nil {
					t.cfg.OnTap()
				}
			case <-copyItem.ClickedCh:
				if t.cfg.OnCopy != nil {
					t.cfg.OnCopy()
				}
			case <-quit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	notification.SetSink(nil)
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

func (t *Tray) showNotice(title, body string) {
	t.mu.Lock()
	t.notice = title + ": " + body
	t.applyLocked()
	t.mu.Unlock()
}

func (t *Tray) tooltipLocked() string {
	if t.notice != "" {
		return t.notice
	}
	return t.cfg.Tooltip
}

func (t *Tray) applyLocked() {
	if !t.ready {
		return
	}
	systray.SetTooltip(t.tooltipLocked())
	if t.label != "" {
		t.button.SetTitle(t.label)
	}
	if t.enabled {
		t.button.Enable()
	} else {
		t.button.Disable()
	}
	t.status.SetTitle(summarize(t.text))
	if t.hasText {
		t.copy.Enable()
	} else {
		t.copy.Disable()
	}
}

func (t *Tray) SetButton(label string, enabled bool) {
	t.mu.Lock()
	t.label, t.enabled = label, enabled
	if !enabled {
		t.notice = ""
	}
	t.applyLocked()
	t.mu.Unlock()
}

// SetStatus shows the status; selectable text is the recognized result,
// which the Copy item then offers.
func (t *Tray) SetStatus(text string, selectable bool) {
	t.mu.Lock()
	t.text, t.hasText = text, selectable
	t.applyLocked()
	t.mu.Unlock()
}

// Text returns the current result, empty unless one is shown.
func (t *Tray) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasText {
		return ""
	}
	return t.text
}

func (t *Tray) ShowImage(img image.Image) {
	if img != nil {
		b := img.Bounds()
		log.Printf("tray: capture %dx%d ready", b.Dx(), b.Dy())
	}
}

// The tray has no preview surface.
func (t *Tray) ShowFrame(img image.Image) {}
func (t *Tray) SetPreviewTransform(m f64.Aff3) {}

func (t *Tray) Notify(msg string) {
	notification.Show(Title, msg)
}

func (t *Tray) Finish() {
	systray.Quit()
}

// summarize fits text on one menu line.
func summarize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxStatusRune {
		return s
	}
	return string([]rune(s)[:maxStatusRune-1]) + "…"
}
