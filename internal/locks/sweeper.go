package locks

import (
	"context"
	"sync"
	"time"

	"ridehub/internal/notifications"
	"ridehub/internal/shared/config"
	"ridehub/pkg/logger"
)

// Sweeper is the background reclaimer. Correctness never depends on it:
// lapsed holds are demoted lazily in the request path too, the sweeper just
// bounds how long a dead row can linger and garbage-collects terminal rows
// past the retention window.
type Sweeper struct {
	repo      Repository
	producer  notifications.AvailabilityProducer
	cfg       *config.Config
	appLogger *logger.Logger

	now func() time.Time

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewSweeper(repo Repository, producer notifications.AvailabilityProducer, cfg *config.Config) *Sweeper {
	return &Sweeper{
		repo:      repo,
		producer:  producer,
		cfg:       cfg,
		appLogger: logger.GetDefault(),
		now:       time.Now,
	}
}

func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx)

	s.appLogger.Info("lock sweeper started",
		"interval", s.cfg.Locks.SweepInterval.String(),
		"batch_size", s.cfg.Locks.SweepBatchSize,
		"retention", s.cfg.Locks.Retention.String(),
	)
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.done)
	s.wg.Wait()
	s.running = false
	s.appLogger.Info("lock sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Locks.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single reclaim+GC pass. Exported so callers can force a
// pass (startup, admin endpoints) without waiting for the ticker.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.now()

	reclaimed := 0
	for {
		lapsed, err := s.repo.FindLapsed(ctx, now, s.cfg.Locks.SweepBatchSize)
		if err != nil {
			s.appLogger.ErrorWithContext(ctx, "sweep: failed to find lapsed locks", err, nil)
			break
		}
		if len(lapsed) == 0 {
			break
		}
		for _, lock := range lapsed {
			// CAS: a request-path demotion or release may have beaten us.
			ok, err := s.repo.MarkExpired(ctx, lock.ID, now)
			if err != nil {
				s.appLogger.ErrorWithContext(ctx, "sweep: failed to expire lock", err, map[string]interface{}{
					"lock_id": lock.ID.String(),
				})
				continue
			}
			if !ok {
				continue
			}
			reclaimed++
			s.producer.EmitSeatAvailabilityChanged(ctx, lock.TripID, lock.SeatNo, notifications.SeatStateAvailable)
		}
		if len(lapsed) < s.cfg.Locks.SweepBatchSize {
			break
		}
	}
	if reclaimed > 0 {
		s.appLogger.LogLocksExpired(ctx, reclaimed)
	}

	cutoff := now.Add(-s.cfg.Locks.Retention)
	deleted, err := s.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		s.appLogger.ErrorWithContext(ctx, "sweep: failed to purge terminal locks", err, nil)
		return
	}
	if deleted > 0 {
		s.appLogger.Debug("sweep: purged terminal locks", "count", deleted, "cutoff", cutoff)
	}
}
