package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/internal/features/referral"
	"stakehub/internal/features/salary"
)

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) (referral.SweepResult, error) {
	f.calls++
	return referral.SweepResult{Evaluated: 3, Changed: 1}, f.err
}

type fakeSalary struct{ calls int }

func (f *fakeSalary) GenerateMonthly(context.Context) (salary.RunResult, error) {
	f.calls++
	return salary.RunResult{Candidates: 2, Created: 1, Skipped: 1}, nil
}

func TestSchedules(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	parse := func(spec string) cron.Schedule {
		s, err := cron.ParseStandard(spec)
		require.NoError(t, err)
		return s
	}

	from := time.Date(2025, 3, 10, 12, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 3, 10, 13, 0, 0, 0, loc), parse(SweepSchedule).Next(from))
	assert.Equal(t, time.Date(2025, 4, 1, 0, 1, 0, 0, loc), parse(SalarySchedule).Next(from))
}

func TestStartStop(t *testing.T) {
	sw, sal := &fakeSweeper{}, &fakeSalary{}
	s := NewScheduler(time.UTC, sw, sal)

	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
	assert.ErrorIs(t, s.ctx.Err(), context.Canceled)
}

func TestRunners(t *testing.T) {
	sw, sal := &fakeSweeper{}, &fakeSalary{}
	s := NewScheduler(nil, sw, sal)

	s.runSweep(context.Background())
	s.runSalary(context.Background())
	assert.Equal(t, 1, sw.calls)
	assert.Equal(t, 1, sal.calls)

	sw.err = errors.New("db down")
	assert.NotPanics(t, func() { s.runSweep(context.Background()) })
	assert.Equal(t, 2, sw.calls)
}
