package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/lms-backend/internal/config"
	"github.com/stemsi/lms-backend/internal/service"
)

// SweepWorker runs the periodic attempt maintenance passes: expiring overdue
// attempts, marking missed heartbeats, and abandoning/purging stale rows.
// Every pass is idempotent, so running multiple replicas is safe; the
// status preconditions on each update make concurrent sweeps settle on one
// winner per attempt.
type SweepWorker struct {
	attemptService *service.AttemptService
	cfg            *config.Config
	log            zerolog.Logger
}

func NewSweepWorker(attemptService *service.AttemptService, cfg *config.Config, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		attemptService: attemptService,
		cfg:            cfg,
		log:            log.With().Str("component", "sweep_worker").Logger(),
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.cfg.SweepInterval).Msg("SweepWorker started")

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("SweepWorker stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SweepWorker) runOnce(ctx context.Context) {
	start := time.Now()

	expired, err := w.attemptService.ExpireOverdueAttempts(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Expire pass failed")
	}

	missed, err := w.attemptService.CheckHeartbeats(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Heartbeat pass failed")
	}

	abandoned, purged, err := w.attemptService.AbandonStaleAttempts(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Abandon pass failed")
	}

	if expired > 0 || missed > 0 || abandoned > 0 || purged > 0 {
		w.log.Info().
			Int("expired", expired).
			Int("heartbeat_missed", missed).
			Int64("abandoned", abandoned).
			Int64("purged", purged).
			Dur("took", time.Since(start)).
			Msg("Sweep pass completed")
	}
}
