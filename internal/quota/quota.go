// Package quota derives send counts from the ledger and enforces the
// per-run, daily and weekly caps.
package quota

import (
	"fmt"
	"time"

	"bidbot-engine/internal/errs"
)

// Counter is the slice of the ledger the limiter reads.
type Counter interface {
	CountSince(since time.Time) int
	CountPricedSince(since time.Time) int
}

type Caps struct {
	PerRun  int
	PerDay  int // 0 disables the daily cap
	PerWeek int
}

// Limiter never caches counts; every check re-reads the ledger.
type Limiter struct {
	ledger  Counter
	caps    Caps
	timeNow func() time.Time // Injectable for testing
}

func NewLimiter(ledger Counter, caps Caps) *Limiter {
	return NewLimiterWithClock(ledger, caps, time.Now)
}

func NewLimiterWithClock(ledger Counter, caps Caps, timeNow func() time.Time) *Limiter {
	return &Limiter{ledger: ledger, caps: caps, timeNow: timeNow}
}

func (l *Limiter) Caps() Caps     { return l.caps }
func (l *Limiter) Now() time.Time { return l.timeNow() }

// WeekStart is the most recent Monday 00:00:00 in now's location.
func WeekStart(now time.Time) time.Time {
	back := (int(now.Weekday()) + 6) % 7
	return time.Date(now.Year(), now.Month(), now.Day()-back, 0, 0, 0, 0, now.Location())
}

// DayStart is midnight of now's day in now's location.
func DayStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// WeeklyCount counts every dated ledger entry since WeekStart, rejections included.
func (l *Limiter) WeeklyCount(now time.Time) int { return l.ledger.CountSince(WeekStart(now)) }

// DailyCount counts only proposals sent since DayStart; rejections do not use up the day.
func (l *Limiter) DailyCount(now time.Time) int { return l.ledger.CountPricedSince(DayStart(now)) }

func (l *Limiter) CanStartRun(now time.Time) bool { return l.Check(0, now) == nil }

func (l *Limiter) CanSendOne(runSent int, now time.Time) bool { return l.Check(runSent, now) == nil }

// Check reports which cap, if any, blocks one more send. The error wraps
// errs.ErrCapReached.
func (l *Limiter) Check(runSent int, now time.Time) error {
	if runSent >= l.caps.PerRun {
		return capErr("run", runSent, l.caps.PerRun)
	}
	if n := l.WeeklyCount(now); n >= l.caps.PerWeek {
		return capErr("week", n, l.caps.PerWeek)
	}
	if l.caps.PerDay > 0 {
		if n := l.DailyCount(now); n >= l.caps.PerDay {
			return capErr("day", n, l.caps.PerDay)
		}
	}
	return nil
}

func capErr(window string, count, limit int) error {
	err := errs.Wrapf(errs.ErrCapReached, "%s cap %d/%d", window, count, limit)
	return errs.WithDetail(err, fmt.Sprintf("window=%s count=%d limit=%d", window, count, limit))
}

type Usage struct {
	Week      int       `json:"week"`
	Day       int       `json:"day"`
	WeekStart time.Time `json:"week_start"`
	Caps      Caps      `json:"caps"`
}

func (l *Limiter) Usage(now time.Time) Usage {
	return Usage{
		Week:      l.WeeklyCount(now),
		Day:       l.DailyCount(now),
		WeekStart: WeekStart(now),
		Caps:      l.caps,
	}
}
