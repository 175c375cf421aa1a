package sweepers

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/merchantiq/catalog-service/internal/enrichqueue"
	"github.com/rs/zerolog"
)

// QueueSweeper periodically reconciles the enrichment queue against
// supplier product state, repairing orphaned and stuck products.
type QueueSweeper struct {
	pool     *pgxpool.Pool
	logger   *zerolog.Logger
	interval time.Duration
	config   enrichqueue.CoordinatorConfig
	stopChan chan struct{}
}

// NewQueueSweeper creates a sweeper for enrichment queue maintenance
func NewQueueSweeper(pool *pgxpool.Pool, logger *zerolog.Logger, interval time.Duration, config enrichqueue.CoordinatorConfig) *QueueSweeper {
	return &QueueSweeper{
		pool:     pool,
		logger:   logger,
		interval: interval,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic reconciliation sweep. Blocks until the
// context is cancelled or Stop is called.
func (s *QueueSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("stuck_threshold", s.config.StuckThreshold).
		Int("high_water_mark", s.config.HighWaterMark).
		Msg("Starting enrichment queue sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Queue sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Queue sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop signals the sweeper to stop
func (s *QueueSweeper) Stop() {
	close(s.stopChan)
}

func (s *QueueSweeper) sweep(ctx context.Context) {
	s.logger.Debug().Msg("Running enrichment queue reconciliation")

	result, err := enrichqueue.Reconcile(ctx, s.pool, s.config)
	if err != nil {
		s.logger.Error().Err(err).Msg("Enrichment queue reconciliation failed")
		return
	}

	if result.OrphansFound > 0 || result.StuckFound > 0 {
		s.logger.Info().
			Int("orphans_found", result.OrphansFound).
			Int("orphans_repaired", result.OrphansRepaired).
			Int("stuck_found", result.StuckFound).
			Int("stuck_repaired", result.StuckRepaired).
			Bool("alert_raised", result.AlertRaised).
			Msg("Repaired enrichment queue entries")
	}
}
