package service

import (
	"context"
	"time"

	"packvault-autosell-api/internal/repository"

	"github.com/rs/zerolog"
)

// CleanupConfig holds configuration for run-log retention.
type CleanupConfig struct {
	// Retention is how long batch run summaries are kept.
	// Default: 90 days
	Retention time.Duration

	// Timeout bounds one cleanup pass.
	// Default: 5 minutes
	Timeout time.Duration
}

// DefaultCleanupConfig returns default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Retention: 90 * 24 * time.Hour,
		Timeout:   5 * time.Minute,
	}
}

// RunLogCleanup prunes old batch run summaries. Sale records are never pruned.
// It is registered with the scheduler as a job.
type RunLogCleanup struct {
	repo   repository.LedgerRepository
	config CleanupConfig
	now    func() time.Time
	log    zerolog.Logger
}

// NewRunLogCleanup creates a new run-log cleanup job.
func NewRunLogCleanup(repo repository.LedgerRepository, config CleanupConfig, log zerolog.Logger) *RunLogCleanup {
	defaults := DefaultCleanupConfig()
	if config.Retention == 0 {
		config.Retention = defaults.Retention
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}

	return &RunLogCleanup{
		repo:   repo,
		config: config,
		now:    time.Now,
		log:    log.With().Str("component", "run_log_cleanup").Logger(),
	}
}

// Name returns the job name.
func (c *RunLogCleanup) Name() string {
	return "run_log_retention"
}

// Run performs one cleanup pass.
func (c *RunLogCleanup) Run() error {
	_, err := c.RunNow()
	return err
}

// RunNow triggers an immediate cleanup and returns the number of deleted runs.
func (c *RunLogCleanup) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	cutoff := c.now().Add(-c.config.Retention)
	deleted, err := c.repo.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		c.log.Error().Err(err).Msg("Error during run-log cleanup")
		return 0, err
	}

	if deleted > 0 {
		c.log.Info().Int64("deleted", deleted).Dur("retention", c.config.Retention).Msg("Cleaned up old run summaries")
	} else {
		c.log.Debug().Msg("No run summaries to clean up")
	}
	return deleted, nil
}
