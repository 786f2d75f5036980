// Package eventloop runs posted events one at a time on a single goroutine.
package eventloop

import (
	"context"
	"log"
	"sync"

	"camera-ocr-llm/src/hotkey"
)

// Loop is the single-threaded coordinator: every state change of the screen
// happens inside a function posted here.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. It never blocks and returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Dispatch is Post for callers that do not care about the result.
func (l *Loop) Dispatch(fn func()) {
	if !l.Post(fn) {
		log.Printf("eventloop: dropped event after stop")
	}
}

// StartHotkey registers a global hotkey whose presses run fn on the loop.
func (l *Loop) StartHotkey(ctx context.Context, combo string, fn func()) error {
	if combo == "" {
		return nil
	}
	return hotkey.Listen(ctx, combo, func() { l.Dispatch(fn) })
}

// Run processes events until ctx is cancelled. Events still queued at that
// point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
	}()
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}
