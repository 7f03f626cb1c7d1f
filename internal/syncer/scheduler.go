package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/nzaccagnino/go-notepad/internal/logging"
)

const DefaultInterval = 5 * time.Minute

// Job is one scheduled sync run.
type Job func(ctx context.Context) error

// Scheduler runs a job on an interval and on demand. Stop cancels the
// run in flight and waits for the loop to return.
type Scheduler struct {
	job    Job
	logger *logging.Logger

	trigger chan struct{}
	reset   chan struct{}

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	lastRun  time.Time
	lastErr  error
}

func NewScheduler(interval time.Duration, job Job, logger *logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		reset:    make(chan struct{}, 1),
	}
}

// Start launches the loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Trigger requests an immediate run. Requests made while a run is pending
// collapse into one.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SetInterval changes the tick period. A running loop picks it up without
// a restart.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	s.mu.Lock()
	changed := s.interval != d
	s.interval = d
	s.mu.Unlock()

	if changed {
		select {
		case s.reset <- struct{}{}:
		default:
		}
	}
}

func (s *Scheduler) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// LastRun returns when the job last finished and what it returned.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.currentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reset:
			ticker.Reset(s.currentInterval())
			continue
		case <-ticker.C:
		case <-s.trigger:
		}
		s.run(ctx)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	err := s.job(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Warnf("scheduled sync failed: %v", err)
	}
	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()
}
