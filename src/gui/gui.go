// Package gui is the windowed camera OCR screen built with fyne.
package gui

import (
	"context"
	"image"
	"log"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/image/math/f64"

	"camera-ocr-llm/src/notification"
	"camera-ocr-llm/src/preview"
)

const Title = "Camera OCR"

// Window renders the screen. Its setters may be called from any goroutine;
// UI mutations are marshalled with fyne.Do.
type Window struct {
	app fyne.App
	win fyne.Window

	image  *canvas.Image
	status *widget.Label
	button *widget.Button

	// OnTap, OnBack, OnResize and OnClose are wired by the host before Show.
	// OnClose runs when the user closes the window.
	OnTap    func()
	OnBack   func()
	OnResize func(size image.Point)
	OnClose  func()

	mu        sync.Mutex
	transform f64.Aff3
	size      image.Point
	frozen    bool
}

func New(a fyne.App) *Window {
	w := &Window{app: a, transform: preview.Identity}
	w.win = a.NewWindow(Title)

	w.image = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	w.image.FillMode = canvas.ImageFillContain
	w.image.ScaleMode = canvas.ImageScaleFastest

	w.status = widget.NewLabel("")
	w.status.Wrapping = fyne.TextWrapWord
	w.button = widget.NewButton("", func() {
		if w.OnTap != nil {
			w.OnTap()
		}
	})

	observed := container.New(&resizeLayout{onResize: w.resized}, w.image)
	content := container.NewBorder(nil, container.NewVBox(w.status, w.button), nil, nil, observed)
	w.win.SetContent(content)
	w.win.Resize(fyne.NewSize(480, 640))

	w.win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape && w.OnBack != nil {
			w.OnBack()
		}
	})
	w.win.SetCloseIntercept(w.closing)

	notification.SetSink(func(title, body string) {
		a.SendNotification(fyne.NewNotification(title, body))
	})
	return w
}

func (w *Window) closing() {
	if w.OnClose != nil {
		w.OnClose()
	}
	w.win.Close()
}

func (w *Window) resized(size image.Point) {
	w.mu.Lock()
	changed := w.size != size
	w.size = size
	w.mu.Unlock()
	if changed && w.OnResize != nil {
		w.OnResize(size)
	}
}

// ShowAndRun blocks in the fyne main loop until the window closes.
func (w *Window) ShowAndRun() {
	w.win.ShowAndRun()
}

func (w *Window) SetButton(label string, enabled bool) {
	fyne.Do(func() {
		w.button.SetText(label)
		if enabled {
			w.button.Enable()
		} else {
			w.button.Disable()
		}
	})
}

func (w *Window) SetStatus(text string, selectable bool) {
	fyne.Do(func() {
		w.status.Selectable = selectable
		w.status.SetText(text)
	})
}

// ShowImage freezes the view on the corrected capture; nil resumes the
// live preview.
func (w *Window) ShowImage(img image.Image) {
	w.mu.Lock()
	w.frozen = img != nil
	w.mu.Unlock()
	if img == nil {
		return
	}
	fyne.Do(func() {
		w.image.Image = img
		w.image.Refresh()
	})
}

func (w *Window) ShowFrame(img image.Image) {
	w.mu.Lock()
	frozen, m, size := w.frozen, w.transform, w.size
	w.mu.Unlock()
	if frozen || size.X <= 0 || size.Y <= 0 {
		return
	}
	rendered := preview.Render(img, size, m)
	fyne.Do(func() {
		w.mu.Lock()
		frozen := w.frozen
		w.mu.Unlock()
		if frozen {
			return
		}
		w.image.Image = rendered
		w.image.Refresh()
	})
}

func (w *Window) SetPreviewTransform(m f64.Aff3) {
	w.mu.Lock()
	w.transform = m
	w.mu.Unlock()
}

func (w *Window) Notify(msg string) {
	notification.Show(Title, msg)
}

func (w *Window) Finish() {
	log.Printf("gui: closing window")
	fyne.Do(func() { w.win.Close() })
}

// Confirm implements permission.Prompter with a modal dialog.
func (w *Window) Confirm(ctx context.Context, title, message string) (bool, error) {
	answer := make(chan bool, 1)
	fyne.Do(func() {
		dialog.ShowConfirm(title, message, func(ok bool) { answer <- ok }, w.win)
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case ok := <-answer:
		return ok, nil
	}
}

// resizeLayout stretches its objects over the container and reports every
// new size, which is how the preview learns about layout changes.
type resizeLayout struct {
	onResize func(image.Point)
}

func (l *resizeLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, o := range objects {
		o.Move(fyne.NewPos(0, 0))
		o.Resize(size)
	}
	if l.onResize != nil {
		l.onResize(image.Pt(int(size.Width), int(size.Height)))
	}
}

func (l *resizeLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(160, 160)
}
