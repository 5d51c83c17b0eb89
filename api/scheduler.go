/*
scheduler.go - Daily due-transaction sweep scheduler

PURPOSE:
  Runs the sweeper on a fixed interval so transactions that become due
  without any mutation (future-dated rows reaching their date) are folded
  into their account balances.

DESIGN:
  - Runs a background goroutine with configurable interval (default 24h)
  - Optionally sweeps once on start
  - Never runs two sweeps at once; a tick that finds one in progress is skipped
  - Each sweep is persisted by the sweeper as a SweepRun for audit and the API

USAGE:
  scheduler := NewSweepScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - ledger/sweeper.go: window selection and fault isolation
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/ledger-sync/ledger"
)

// Sweeper is the part of the engine the scheduler drives.
type Sweeper interface {
	Sweep(ctx context.Context) (ledger.SweepRun, error)
}

// SweepScheduler handles the periodic sweep.
type SweepScheduler struct {
	Engine     Sweeper
	Interval   time.Duration
	RunOnStart bool
	Timeout    time.Duration // per sweep, 0 means none
	Enabled    bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running sync.Mutex
	lastMu  sync.Mutex // guards lastRun and nextRun
	lastRun *ledger.SweepRun
	nextRun time.Time
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(engine Sweeper) *SweepScheduler {
	return &SweepScheduler{
		Engine:   engine,
		Interval: 24 * time.Hour,
		Enabled:  true,
	}
}

// Start begins the scheduler.
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.setNextRun(time.Now().Add(s.Interval))
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	log.Printf("[Scheduler] Started with sweep interval: %v", s.Interval)
}

// Stop stops the scheduler and waits for an in-flight sweep.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.setNextRun(time.Time{})
		log.Println("[Scheduler] Stopped")
	}
}

func (s *SweepScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	if s.RunOnStart {
		s.sweep()
	}

	for {
		select {
		case t := <-ticker.C:
			s.setNextRun(t.Add(s.Interval))
			s.sweep()
		case <-stop:
			return
		}
	}
}

// sweep returns false when another sweep was already running.
func (s *SweepScheduler) sweep() (ledger.SweepRun, bool, error) {
	if !s.running.TryLock() {
		log.Println("[Scheduler] Sweep already in progress, skipping")
		return ledger.SweepRun{}, false, nil
	}
	defer s.running.Unlock()

	ctx := context.Background()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	log.Printf("[Scheduler] Running sweep at %v", time.Now())
	run, err := s.Engine.Sweep(ctx)
	if err != nil {
		log.Printf("[Scheduler] Sweep failed: %v", err)
	} else {
		log.Printf("[Scheduler] Sweep %s %s: %d accounts, %d recomputed, %d failed",
			run.ID, run.Status, run.Accounts, run.Recomputed, run.Failed)
	}
	if run.ID != "" {
		s.lastMu.Lock()
		s.lastRun = &run
		s.lastMu.Unlock()
	}
	return run, true, err
}

// ErrSweepInProgress is returned by RunNow while a sweep is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// RunNow triggers an immediate sweep (for testing/admin).
func (s *SweepScheduler) RunNow() (ledger.SweepRun, error) {
	run, ran, err := s.sweep()
	if !ran {
		return run, ErrSweepInProgress
	}
	return run, err
}

// LastRun returns the most recent sweep started by this scheduler.
func (s *SweepScheduler) LastRun() *ledger.SweepRun {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRun
}

// GetNextRunTime returns when the next scheduled sweep will occur, or the
// zero time when the scheduler is not running.
func (s *SweepScheduler) GetNextRunTime() time.Time {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.nextRun
}

func (s *SweepScheduler) setNextRun(t time.Time) {
	s.lastMu.Lock()
	s.nextRun = t
	s.lastMu.Unlock()
}
