package daemon

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"caseflow/internal/config"
	"caseflow/internal/logging"
	"caseflow/internal/telemetry"
	"caseflow/internal/workflow"
)

// sweeper periodically expires instances past their TTL and reclaims stage
// attempts whose worker disappeared.
type sweeper struct {
	store    *workflow.Store
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	interval time.Duration
	staleAge time.Duration

	// dispatch re-enqueues a reclaimed instance. Without it an instance
	// returned to pending would sit undriven until the next daemon start.
	dispatch func(context.Context, string) error

	wg sync.WaitGroup
}

func newSweeper(cfg *config.Config, store *workflow.Store, metrics *telemetry.Metrics, logger *slog.Logger, dispatch func(context.Context, string) error) *sweeper {
	return &sweeper{
		store:    store,
		metrics:  metrics,
		logger:   logging.NewComponentLogger(logger, "sweeper"),
		interval: time.Duration(cfg.SweepIntervalSeconds) * time.Second,
		staleAge: time.Duration(cfg.StaleAttemptTimeoutSeconds) * time.Second,
		dispatch: dispatch,
	}
}

func (s *sweeper) start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, _, err := s.runOnce(ctx); err != nil && ctx.Err() == nil {
					s.logger.Warn("sweep pass failed", logging.Error(err))
				}
			}
		}
	}()
}

func (s *sweeper) stop() {
	s.wg.Wait()
}

// runOnce performs a single expiry and reclaim pass.
func (s *sweeper) runOnce(ctx context.Context) (expired, reclaimed int, err error) {
	now := time.Now()
	expired, err = s.store.SweepExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	if expired > 0 {
		s.metrics.ObserveSweep(expired)
		s.logger.Info("expired instances", logging.Int("count", expired))
	}

	ids, err := s.store.ReclaimStaleAttempts(ctx, now.Add(-s.staleAge))
	if err != nil {
		return expired, 0, err
	}
	if len(ids) > 0 {
		s.metrics.ObserveReclaim(len(ids))
		s.logger.Info("reclaimed stale attempts", logging.Int("count", len(ids)))
	}

	// Reclaimed instances with retry budget left are pending again and have
	// no driver; hand them back to the pool. Terminal ones make the drive a
	// no-op.
	for _, id := range ids {
		if s.dispatch == nil {
			break
		}
		if err := s.dispatch(ctx, id); err != nil {
			s.logger.Warn("failed to re-dispatch reclaimed instance",
				logging.String(logging.FieldInstanceID, id), logging.Error(err))
		}
	}
	return expired, len(ids), nil
}
