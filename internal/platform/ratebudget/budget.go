package ratebudget

import (
	"errors"
	"sync"
	"time"
)

var ErrBudgetExceeded = errors.New("rate budget exceeded")

// Limits caps outbound calls to a capacity-constrained provider. A zero
// ceiling disables that ceiling.
type Limits struct {
	Monthly     int
	Daily       int
	Hourly      int
	MinInterval time.Duration
}

// Budget tracks spend against Limits. It is an explicit injectable value;
// callers hold a reference instead of reading ambient globals.
type Budget struct {
	mu     sync.Mutex
	limits Limits

	monthStart time.Time
	monthUsed  int
	dayStart   time.Time
	dayUsed    int
	hourStart  time.Time
	hourUsed   int
	lastCall   time.Time

	now func() time.Time
}

// Usage is a point-in-time snapshot of spend, for run summaries.
type Usage struct {
	MonthUsed int
	DayUsed   int
	HourUsed  int
	LastCall  time.Time
}

func New(limits Limits) *Budget {
	return &Budget{
		limits: limits,
		now:    time.Now,
	}
}

// Allow reserves one call, returning ErrBudgetExceeded when any ceiling is
// hit. Windows roll over on UTC month, day, and hour boundaries.
func (b *Budget) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now().UTC()
	b.rollWindows(now)

	if b.limits.MinInterval > 0 && !b.lastCall.IsZero() && now.Sub(b.lastCall) < b.limits.MinInterval {
		return ErrBudgetExceeded
	}
	if b.limits.Monthly > 0 && b.monthUsed >= b.limits.Monthly {
		return ErrBudgetExceeded
	}
	if b.limits.Daily > 0 && b.dayUsed >= b.limits.Daily {
		return ErrBudgetExceeded
	}
	if b.limits.Hourly > 0 && b.hourUsed >= b.limits.Hourly {
		return ErrBudgetExceeded
	}

	b.monthUsed++
	b.dayUsed++
	b.hourUsed++
	b.lastCall = now
	return nil
}

func (b *Budget) Snapshot() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollWindows(b.now().UTC())
	return Usage{
		MonthUsed: b.monthUsed,
		DayUsed:   b.dayUsed,
		HourUsed:  b.hourUsed,
		LastCall:  b.lastCall,
	}
}

func (b *Budget) rollWindows(now time.Time) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if !monthStart.Equal(b.monthStart) {
		b.monthStart = monthStart
		b.monthUsed = 0
	}

	dayStart := now.Truncate(24 * time.Hour)
	if !dayStart.Equal(b.dayStart) {
		b.dayStart = dayStart
		b.dayUsed = 0
	}

	hourStart := now.Truncate(time.Hour)
	if !hourStart.Equal(b.hourStart) {
		b.hourStart = hourStart
		b.hourUsed = 0
	}
}
