// Package common contains utilities shared by the whole project:
// the clock, timezone helpers and money formatting.
package common

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Clock is the engine's source of "now". Services receive it explicitly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a manually driven clock.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock starts the clock at t.
func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var (
	locMu sync.RWMutex
	loc   = time.UTC
)

// SetLocation sets the business timezone used for day and month boundaries.
// Called once at startup from APP_TIMEZONE.
func SetLocation(name string) error {
	l, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	locMu.Lock()
	loc = l
	locMu.Unlock()
	return nil
}

// Location returns the business timezone.
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return loc
}

// StartOfDay returns midnight of t's day in the business timezone.
func StartOfDay(t time.Time) time.Time {
	t = t.In(Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns the first instant of t's month in the business timezone.
func StartOfMonth(t time.Time) time.Time {
	t = t.In(Location())
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// FormatUSDT renders an amount with two decimals and the currency tag.
// Example: FormatUSDT(decimal.RequireFromString("12.5")) → "12.50 USDT"
func FormatUSDT(d decimal.Decimal) string {
	return d.StringFixed(2) + " USDT"
}

// Percent returns amount × pct / 100.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(decimal.NewFromInt(100))
}
