package db

import (
	"context"
	"sync"
	"time"
)

type TabSaver interface {
	SaveAllTabs(ctx context.Context, tabs []Tab) error
}

// AutoSaver debounces tab-collection writes: edits call Schedule freely and
// only the latest snapshot is written once the delay passes without another
// edit.
type AutoSaver struct {
	saver   TabSaver
	delay   time.Duration
	onError func(error)

	writeMu sync.Mutex // serializes SaveAllTabs so snapshots land in order

	mu      sync.Mutex
	pending []Tab
	timer   *time.Timer
	closed  bool
}

func NewAutoSaver(saver TabSaver, delay time.Duration, onError func(error)) *AutoSaver {
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &AutoSaver{saver: saver, delay: delay, onError: onError}
}

func (a *AutoSaver) Schedule(tabs []Tab) {
	snapshot := make([]Tab, len(tabs))
	copy(snapshot, tabs)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = snapshot
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		if err := a.Flush(context.Background()); err != nil && a.onError != nil {
			a.onError(err)
		}
	})
}

// Flush writes the pending snapshot now, if there is one.
func (a *AutoSaver) Flush(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	tabs := a.pending
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if tabs == nil {
		return nil
	}
	return a.saver.SaveAllTabs(ctx, tabs)
}

func (a *AutoSaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Close flushes outstanding work; later Schedule calls are ignored.
func (a *AutoSaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(ctx)
}
