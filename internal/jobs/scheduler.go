// Package jobs runs background work on a cron schedule: the hourly premium
// sweep and the monthly salary requests.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/features/referral"
	"stakehub/internal/features/salary"
)

const (
	SweepSchedule  = "0 * * * *"
	SalarySchedule = "1 0 1 * *"
)

// PremiumSweeper re-evaluates every referrer.
type PremiumSweeper interface {
	Sweep(ctx context.Context) (referral.SweepResult, error)
}

// SalaryGenerator creates the monthly salary requests.
type SalaryGenerator interface {
	GenerateMonthly(ctx context.Context) (salary.RunResult, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	sweep  PremiumSweeper
	salary SalaryGenerator
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler in loc. A job still running when its next
// tick arrives is skipped.
func NewScheduler(loc *time.Location, sweep PremiumSweeper, salary SalaryGenerator) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{cron: c, sweep: sweep, salary: salary}
}

// Start registers the jobs and starts the runner. Jobs run with a context
// derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(SweepSchedule, func() { s.runSweep(s.ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(SalarySchedule, func() { s.runSalary(s.ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	log.WithField("location", s.cron.Location().String()).Info("Job scheduler started")
	return nil
}

func (s *Scheduler) runSweep(ctx context.Context) {
	start := time.Now()
	res, err := s.sweep.Sweep(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Premium sweep failed")
		return
	}
	log.WithFields(log.Fields{
		"evaluated": res.Evaluated,
		"changed":   res.Changed,
		"bonuses":   res.Bonuses,
		"failed":    res.Failed,
		"took":      time.Since(start).String(),
	}).Info("[CRON] Premium sweep done")
}

func (s *Scheduler) runSalary(ctx context.Context) {
	res, err := s.salary.GenerateMonthly(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Monthly salary requests failed")
		return
	}
	log.WithFields(log.Fields{
		"candidates": res.Candidates,
		"created":    res.Created,
		"skipped":    res.Skipped,
		"failed":     res.Failed,
	}).Info("[CRON] Monthly salary requests done")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	log.Info("Job scheduler stopped")
}
