// Package cli holds terminal-facing helpers for the switchboard command.
package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalContext is cancelled on SIGINT or SIGTERM and remembers which signal
// did it. SIGHUP does not cancel; it is delivered on Reloads instead.
type SignalContext struct {
	context.Context
	Cancel func()

	stop    sync.Once
	sigCh   chan os.Signal
	reloads chan os.Signal
	mu      sync.Mutex
	sigVal  os.Signal
}

// NewSignalContext starts listening for signals until parent is done or
// a terminating signal arrives.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
		reloads: make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go sc.loop()
	return sc
}

func (sc *SignalContext) loop() {
	defer sc.stop.Do(func() { signal.Stop(sc.sigCh) })

	for {
		select {
		case sig := <-sc.sigCh:
			if sig == syscall.SIGHUP {
				select {
				case sc.reloads <- sig:
				default:
					// A reload is already pending
				}
				continue
			}
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
			return
		case <-sc.Done():
			return
		}
	}
}

// Reloads delivers SIGHUP notifications. Bursts collapse into one.
func (sc *SignalContext) Reloads() <-chan os.Signal {
	return sc.reloads
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}
