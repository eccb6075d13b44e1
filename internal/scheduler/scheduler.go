package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/logger"
)

type Task func(ctx context.Context) error

// Trigger fires at fixed times of day on a set of weekdays.
type Trigger struct {
	minutes  []int // minutes after midnight, sorted
	weekdays map[time.Weekday]bool
	loc      *time.Location
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseTrigger accepts "HH:MM" times and three-letter weekday names.
func ParseTrigger(times, weekdays []string, loc *time.Location) (Trigger, error) {
	if loc == nil {
		loc = time.Local
	}
	t := Trigger{weekdays: map[time.Weekday]bool{}, loc: loc}

	if len(times) == 0 {
		return Trigger{}, errs.New("schedule.times must have at least 1 entry")
	}
	for _, s := range times {
		var h, m int
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			return Trigger{}, errs.Newf("schedule.times entry %q must be HH:MM", s)
		}
		t.minutes = append(t.minutes, h*60+m)
	}
	sort.Ints(t.minutes)

	if len(weekdays) == 0 {
		return Trigger{}, errs.New("schedule.weekdays must have at least 1 entry")
	}
	for _, s := range weekdays {
		key := strings.ToLower(strings.TrimSpace(s))
		if len(key) > 3 {
			key = key[:3]
		}
		wd, ok := weekdayNames[key]
		if !ok {
			return Trigger{}, errs.Newf("schedule.weekdays entry %q is not a weekday", s)
		}
		t.weekdays[wd] = true
	}
	return t, nil
}

// Next returns the first fire time strictly after now.
func (t Trigger) Next(now time.Time) time.Time {
	now = now.In(t.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, t.loc)
	for i := 0; i < 8; i++ {
		d := day.AddDate(0, 0, i)
		if !t.weekdays[d.Weekday()] {
			continue
		}
		for _, m := range t.minutes {
			at := time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, t.loc)
			if at.After(now) {
				return at
			}
		}
	}
	return time.Time{}
}

// Run waits for each fire time of trigger and runs task. Task errors are logged
// and do not stop the loop. Returns when ctx is done.
func Run(ctx context.Context, trigger Trigger, name string, task Task) {
	log := logger.Named("scheduler")
	for {
		next := trigger.Next(time.Now())
		if next.IsZero() {
			log.Errorw("trigger has no upcoming fire time", "name", name)
			return
		}
		log.Infow("next run scheduled", "name", name, "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		runTask(ctx, log, name, task)
	}
}

// Every runs task immediately and then on every tick of interval.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	log := logger.Named("scheduler")
	t := time.NewTicker(interval)
	defer t.Stop()

	runTask(ctx, log, name, task)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runTask(ctx, log, name, task)
		}
	}
}

func runTask(ctx context.Context, log *zap.SugaredLogger, name string, task Task) {
	if err := task(ctx); err != nil {
		log.Errorw("task failed", "name", name, "error", err)
	}
}
