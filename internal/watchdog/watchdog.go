// Copyright 2025 Joseph Cumines
//
// Package watchdog reports foreground focus changes by polling.

package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultInterval = 250 * time.Millisecond
	// DefaultDebounce suppresses a repeat of the last event within this window.
	DefaultDebounce = time.Second
)

// Focus identifies the foreground window.
type Focus struct {
	Title  string `json:"title"`
	Handle int64  `json:"handle"`
}

// Source reports the current focus.
type Source interface {
	Focus(ctx context.Context) (Focus, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Focus, error)

// Focus implements Source.
func (f SourceFunc) Focus(ctx context.Context) (Focus, error) { return f(ctx) }

// WindowManager reports the foreground window.
type WindowManager interface {
	Foreground() (int64, error)
	Title(handle int64) (string, error)
}

// ForegroundSource reads focus from a WindowManager.
func ForegroundSource(wm WindowManager) Source {
	return SourceFunc(func(context.Context) (Focus, error) {
		h, err := wm.Foreground()
		if err != nil || h == 0 {
			return Focus{}, err
		}
		title, err := wm.Title(h)
		if err != nil {
			return Focus{}, err
		}
		return Focus{Handle: h, Title: title}, nil
	})
}

// Watchdog polls a Source and invokes the focus callback on change.
type Watchdog struct {
	source      Source
	logger      *slog.Logger
	now         func() time.Time
	callback    func(Focus)
	cancel      context.CancelFunc
	done        chan struct{}
	lastEmitted Focus
	lastAt      time.Time
	observed    Focus
	mu          sync.Mutex
	Interval    time.Duration
	Debounce    time.Duration
}

// New returns a stopped Watchdog.
func New(source Source, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		source:   source,
		logger:   logger,
		now:      time.Now,
		Interval: DefaultInterval,
		Debounce: DefaultDebounce,
	}
}

// SetFocusCallback sets the callback, nil disables it.
func (w *Watchdog) SetFocusCallback(fn func(Focus)) {
	w.mu.Lock()
	w.callback = fn
	w.mu.Unlock()
}

// Start begins polling. Calling Start on a running Watchdog does nothing.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

// Stop halts polling and waits for the loop to exit. Calling Stop on a
// stopped Watchdog does nothing.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watchdog) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(max(w.Interval, time.Millisecond))
	defer ticker.Stop()
	for {
		w.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll samples the source once.
func (w *Watchdog) poll(ctx context.Context) {
	f, err := w.source.Focus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Debug("watchdog: focus unavailable", slog.Any("error", err))
		}
		return
	}
	w.mu.Lock()
	if f == w.observed {
		w.mu.Unlock()
		return
	}
	w.observed = f
	if f.Handle == 0 {
		w.mu.Unlock()
		return
	}
	now := w.now()
	if f == w.lastEmitted && now.Sub(w.lastAt) < w.Debounce {
		w.mu.Unlock()
		return
	}
	w.lastEmitted, w.lastAt = f, now
	cb := w.callback
	w.mu.Unlock()

	w.logger.Debug("watchdog: focus changed", slog.Int64("handle", f.Handle), slog.String("title", f.Title))
	if cb != nil {
		cb(f)
	}
}
