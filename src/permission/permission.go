// Package permission decides whether the screen may use the camera.
package permission

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Gate is the permission subsystem: a grant check plus an asynchronous-safe
// request. Request blocks until the user answers or ctx ends.
type Gate interface {
	Granted() bool
	Request(ctx context.Context) (bool, error)
}

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
}

var ErrDeviceInaccessible = errors.New("camera device not accessible")

const (
	promptTitle   = "Camera access"
	promptMessage = "Allow this application to use the camera?"
)

// Camera grants access when the user consented and the OS lets this process
// open the device node. An empty Device skips the OS check.
type Camera struct {
	Device   string
	Prompter Prompter

	mu      sync.Mutex
	consent bool
}

// NewCamera returns a gate; preGranted records consent given in configuration.
func NewCamera(device string, preGranted bool, p Prompter) *Camera {
	return &Camera{Device: device, Prompter: p, consent: preGranted}
}

func (g *Camera) Granted() bool {
	g.mu.Lock()
	consent := g.consent
	g.mu.Unlock()
	return consent && deviceAccessible(g.Device)
}

func (g *Camera) Request(ctx context.Context) (bool, error) {
	if !deviceAccessible(g.Device) {
		return false, fmt.Errorf("%s: %w", g.Device, ErrDeviceInaccessible)
	}
	g.mu.Lock()
	consent := g.consent
	g.mu.Unlock()
	if consent {
		return true, nil
	}
	if g.Prompter == nil {
		return false, nil
	}
	ok, err := g.Prompter.Confirm(ctx, promptTitle, promptMessage)
	if err != nil {
		return false, err
	}
	log.Printf("permission: camera consent answered %v", ok)
	g.mu.Lock()
	g.consent = ok
	g.mu.Unlock()
	return ok, nil
}

// ReaderPrompter asks on Out and reads a y/n answer from In.
type ReaderPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p ReaderPrompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, "%s: %s [y/N] ", title, message)
	}
	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- answer{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.err != io.EOF {
			return false, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
