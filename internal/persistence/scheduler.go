package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/dreamware/jukebox/internal/logging"
)

// DefaultInterval is how often the scheduler saves a snapshot.
const DefaultInterval = 10 * time.Second

// Scheduler periodically saves a snapshot of a live catalog.
// A failed save is logged and counted; the next tick tries again.
// Thread-safe: Start and Stop may be called from different goroutines.
type Scheduler struct {
	manager  *Manager
	src      Snapshotter
	logger   logr.Logger
	ctx      context.Context    // Context for cancellation
	cancel   context.CancelFunc // Cancel function for shutdown
	interval time.Duration      // How often to save
	mu       sync.Mutex         // Protects saves and lastErr
	lastErr  error              // Outcome of the most recent save
	saves    int                // Number of completed save attempts
	wg       sync.WaitGroup     // Wait group for graceful shutdown
}

// NewScheduler creates a scheduler that saves src through manager every interval.
// A non-positive interval selects DefaultInterval.
//
// Example:
//
//	sched := NewScheduler(manager, store, 10*time.Second, logger)
//	sched.Start(ctx)
//	defer sched.Stop()
func NewScheduler(manager *Manager, src Snapshotter, interval time.Duration, logger logr.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		manager:  manager,
		src:      src,
		logger:   logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the save loop in a new goroutine and returns. The loop runs
// until ctx is cancelled or Stop is called; the first save happens one
// interval after Start.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = s.ctx
	}
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.V(logging.VERBOSE).Info("snapshot scheduler started", "interval", s.interval, "name", s.manager.Name())

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.logger.V(logging.VERBOSE).Info("snapshot scheduler stopping due to context cancellation")
			return
		case <-s.ctx.Done():
			s.logger.V(logging.VERBOSE).Info("snapshot scheduler stopping due to internal cancellation")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	err := s.manager.Save(ctx, s.src)
	if err != nil {
		s.logger.Error(err, "snapshot save failed, will retry", "name", s.manager.Name())
	}

	s.mu.Lock()
	s.saves++
	s.lastErr = err
	s.mu.Unlock()
}

// Stop cancels the save loop and waits for it to return.
// A save already in flight is allowed to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.V(logging.VERBOSE).Info("snapshot scheduler stopped")
}

// LastResult returns the number of save attempts so far and the error of the
// most recent one.
func (s *Scheduler) LastResult() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.lastErr
}
