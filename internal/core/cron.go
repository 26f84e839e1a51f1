package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Standard five fields plus an optional leading seconds field.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

const (
	defaultPreviewCount = 5
	maxPreviewCount     = 10
)

// ParseCron validates a 5- or 6-field schedule. Descriptors such as @daily
// are rejected.
func ParseCron(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "@") {
		return nil, fmt.Errorf("invalid cron expression %q: descriptors are not supported", expr)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// NextOccurrences returns the next n firings after base.
func NextOccurrences(schedule cron.Schedule, base time.Time, n int) []time.Time {
	times := make([]time.Time, 0, n)
	next := base
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		times = append(times, next)
	}
	return times
}

// SchedulePreview describes upcoming firings of a candidate schedule.
type SchedulePreview struct {
	Expr string
	// Active is true when Expr is the schedule the daemon runs on.
	Active bool
	Next   []time.Time
}

// PreviewSchedule lists the next firings of expr from base, in base's
// location. An empty expr previews active. count outside 1..10 becomes 5.
func PreviewSchedule(expr, active string, base time.Time, count int) (*SchedulePreview, error) {
	expr = normalizeCron(expr)
	active = normalizeCron(active)
	if expr == "" {
		expr = active
	}
	if expr == "" {
		return nil, fmt.Errorf("cron expression is required")
	}
	schedule, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	if count <= 0 || count > maxPreviewCount {
		count = defaultPreviewCount
	}
	return &SchedulePreview{
		Expr:   expr,
		Active: expr == active,
		Next:   NextOccurrences(schedule, base, count),
	}, nil
}

// normalizeCron collapses whitespace so equivalent spellings compare equal.
func normalizeCron(expr string) string {
	return strings.Join(strings.Fields(expr), " ")
}
