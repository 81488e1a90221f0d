/**
 * @description
 * Cron scheduler setup for the reconciliation sweeps.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shonubijerry/blacktax/internal/config"
)

// Jobs contains the logic for the scheduled reconciliation tasks.
type Jobs struct {
	service *Service
	logger  *slog.Logger
	config  config.Config
}

// NewJobs creates a new Jobs runner.
func NewJobs(service *Service, logger *slog.Logger, cfg config.Config) *Jobs {
	return &Jobs{
		service: service,
		logger:  logger,
		config:  cfg,
	}
}

// RunFrequentSweep reconciles transfers created within the short lookback
// window, catching webhooks that never arrived.
func (j *Jobs) RunFrequentSweep() {
	j.logger.Info("starting frequent reconciliation sweep")
	ctx := context.Background()

	lookback := time.Duration(j.config.FrequentSweepLookbackMin) * time.Minute
	report, err := j.service.ReconcileTransfers(ctx, lookback)
	if err != nil {
		j.logger.Error("frequent reconciliation sweep failed", "error", err)
		return
	}

	j.logger.Info("frequent reconciliation sweep finished",
		"transfers_checked", report.TransfersChecked,
		"recipients_checked", report.RecipientsChecked,
		"updated", report.Updated,
		"errors", report.Errored)
}

// RunWideSweep reconciles transfers over the multi-day window, settling
// long-tail stragglers the frequent sweep has aged out of.
func (j *Jobs) RunWideSweep() {
	j.logger.Info("starting wide reconciliation sweep")
	ctx := context.Background()

	lookback := time.Duration(j.config.WideSweepLookbackDays) * 24 * time.Hour
	report, err := j.service.ReconcileTransfers(ctx, lookback)
	if err != nil {
		j.logger.Error("wide reconciliation sweep failed", "error", err)
		return
	}

	j.logger.Info("wide reconciliation sweep finished",
		"transfers_checked", report.TransfersChecked,
		"recipients_checked", report.RecipientsChecked,
		"updated", report.Updated,
		"errors", report.Errored)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.FrequentSweepSchedule, s.jobs.RunFrequentSweep); err != nil {
		s.logger.Error("failed to schedule frequent reconciliation sweep", "error", err)
	} else {
		s.logger.Info("scheduled frequent reconciliation sweep", "schedule", s.config.FrequentSweepSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.WideSweepSchedule, s.jobs.RunWideSweep); err != nil {
		s.logger.Error("failed to schedule wide reconciliation sweep", "error", err)
	} else {
		s.logger.Info("scheduled wide reconciliation sweep", "schedule", s.config.WideSweepSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
