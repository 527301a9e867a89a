package notifybox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Scheduler repeatedly triggers Dispatcher.Drain until its context is canceled.
// It is an explicitly started trigger; deployments driven by cron call Drain directly.
type Scheduler struct {
	dispatcher *Dispatcher
	counter    Counter
	cfg        SchedulerConfig

	countMu sync.Mutex
	countAt time.Time
}

// NewScheduler constructs a Scheduler with defaults and optional settings.
// Pending and dead counts are sampled when the dispatcher's store implements Counter.
func NewScheduler(dispatcher *Dispatcher, opts ...SchedulerOption) *Scheduler {
	if dispatcher == nil {
		panic("notifybox: nil Dispatcher")
	}

	var cfg SchedulerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	counter, _ := dispatcher.store.(Counter)

	return &Scheduler{
		dispatcher: dispatcher,
		counter:    counter,
		cfg:        cfg.withDefaults(),
	}
}

// Run starts the drain loop with the configured number of workers.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := s.dispatcher.cfg.Logger
	errCh := make(chan error, s.cfg.Workers)
	var wg sync.WaitGroup

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		workerID := i
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("%w: %v", ErrWorkerPanic, rec)
					logger.Error("notifybox worker panic", "worker", workerID, "panic", rec)
					errCh <- err
					cancel()
				}
			}()

			if err := s.runWorker(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notifybox worker error", "worker", workerID, "err", err)
				errCh <- err
				cancel()
			}
		}()
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return err
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (s *Scheduler) runWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := s.dispatcher.Drain(ctx, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if result.Done >= s.cfg.BatchSize {
			continue
		}

		s.maybeRecordCounts(ctx)
		if err := sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (s *Scheduler) maybeRecordCounts(ctx context.Context) {
	if s.counter == nil || s.cfg.CountInterval <= 0 || ctx.Err() != nil {
		return
	}

	now := s.dispatcher.cfg.Clock.Now()
	s.countMu.Lock()
	nextAllowed := s.countAt.Add(s.cfg.CountInterval)
	if !s.countAt.IsZero() && now.Before(nextAllowed) {
		s.countMu.Unlock()

		return
	}
	s.countAt = now
	s.countMu.Unlock()

	counts, err := s.counter.Counts(ctx)
	if err != nil {
		s.dispatcher.cfg.Logger.Warn("notifybox count failed", "err", err)

		return
	}

	s.dispatcher.cfg.Metrics.SetPending(counts.Pending)
	s.dispatcher.cfg.Metrics.SetDead(counts.Dead)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
