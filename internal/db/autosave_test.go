package db

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSaver struct {
	mu    sync.Mutex
	saves [][]Tab
}

func (r *recordingSaver) SaveAllTabs(_ context.Context, tabs []Tab) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, tabs)
	return nil
}

func (r *recordingSaver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func TestAutoSaverCoalescesBursts(t *testing.T) {
	saver := &recordingSaver{}
	a := NewAutoSaver(saver, 50*time.Millisecond, nil)

	for i := 0; i < 5; i++ {
		a.Schedule([]Tab{{ID: 1, Name: "a.md", Content: string(rune('a' + i))}})
	}

	deadline := time.Now().Add(2 * time.Second)
	for saver.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Allow a stray second write to show up if debouncing were broken.
	time.Sleep(100 * time.Millisecond)

	if saver.count() != 1 {
		t.Fatalf("expected one coalesced save, got %d", saver.count())
	}
	if got := saver.saves[0][0].Content; got != "e" {
		t.Fatalf("expected latest snapshot, got %q", got)
	}
}

func TestAutoSaverFlushAndClose(t *testing.T) {
	saver := &recordingSaver{}
	a := NewAutoSaver(saver, time.Hour, nil)

	if err := a.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if saver.count() != 0 {
		t.Fatalf("flush with nothing pending must not write")
	}

	tabs := []Tab{{ID: 1, Name: "a.md"}}
	a.Schedule(tabs)
	tabs[0].Name = "mutated.md"
	if !a.Pending() {
		t.Fatalf("expected pending snapshot")
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if saver.count() != 1 || saver.saves[0][0].Name != "a.md" {
		t.Fatalf("expected close to flush the scheduled snapshot, got %+v", saver.saves)
	}

	a.Schedule(tabs)
	if a.Pending() {
		t.Fatalf("schedule after close must be ignored")
	}
}
