package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrRunInProgress is returned when a run is requested while another holds the guard.
var ErrRunInProgress = errors.New("automation is already running")

// Runner executes one automation pass.
type Runner interface {
	RunAll(ctx context.Context, trigger TriggerKind) *Summary
}

// Trigger fires the runner on a cron schedule and on demand, never letting
// two runs overlap.
type Trigger struct {
	runner   Runner
	guard    *RunGuard
	logger   *slog.Logger
	location *time.Location
	expr     string
	ceiling  time.Duration

	cron    *cron.Cron
	entryID cron.EntryID

	ctx context.Context
}

// NewTrigger constructs a trigger. ceiling arms the stale-run watchdog; zero disables it.
func NewTrigger(runner Runner, guard *RunGuard, expr string, location *time.Location, ceiling time.Duration, logger *slog.Logger) *Trigger {
	if location == nil {
		location = time.Local
	}
	if guard == nil {
		guard = &RunGuard{}
	}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(location),
	)
	return &Trigger{
		runner:   runner,
		guard:    guard,
		logger:   logger,
		location: location,
		expr:     expr,
		ceiling:  ceiling,
		cron:     c,
	}
}

// Start validates the schedule and begins the scheduling loop. ctx is handed to scheduled runs.
func (t *Trigger) Start(ctx context.Context) error {
	schedule, err := ParseCron(t.expr)
	if err != nil {
		return err
	}
	t.ctx = ctx
	t.entryID = t.cron.Schedule(schedule, cron.FuncJob(t.fire))
	t.cron.Start()
	t.logger.Info("automation scheduled",
		"schedule", t.expr,
		"timezone", t.location.String(),
		"next_run", t.NextRun().Format(time.RFC3339),
	)
	return nil
}

// Stop stops the scheduler and returns a context done once running jobs finish.
func (t *Trigger) Stop() context.Context {
	return t.cron.Stop()
}

// RunOnce runs the automation synchronously, honoring the in-progress guard.
func (t *Trigger) RunOnce(ctx context.Context) (*Summary, error) {
	return t.execute(ctx, TriggerManual)
}

// Running reports whether an automation run holds the guard.
func (t *Trigger) Running() bool {
	return t.guard.Running()
}

// NextRun returns the next scheduled firing, or zero before Start.
func (t *Trigger) NextRun() time.Time {
	if t.entryID != 0 {
		if next := t.cron.Entry(t.entryID).Next; !next.IsZero() {
			return next
		}
	}
	schedule, err := ParseCron(t.expr)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(time.Now().In(t.location))
}

// Schedule returns the cron expression.
func (t *Trigger) Schedule() string {
	return t.expr
}

// Location returns the schedule timezone.
func (t *Trigger) Location() *time.Location {
	return t.location
}

func (t *Trigger) fire() {
	if _, err := t.execute(t.ctxOrBackground(), TriggerScheduled); err != nil && !errors.Is(err, ErrRunInProgress) {
		t.logger.Error("scheduled automation failed", "err", err)
	}
}

func (t *Trigger) execute(ctx context.Context, kind TriggerKind) (summary *Summary, err error) {
	token, ok := t.guard.TryAcquire()
	if !ok {
		t.logger.Warn("previous automation still running, skipping this execution", "trigger", kind)
		return nil, ErrRunInProgress
	}

	var watchdog *time.Timer
	if t.ceiling > 0 {
		watchdog = time.AfterFunc(t.ceiling, func() {
			if t.guard.Release(token) {
				t.logger.Error("automation timeout reached, releasing run guard", "ceiling", t.ceiling)
			}
		})
	}
	defer func() {
		if watchdog != nil {
			watchdog.Stop()
		}
		t.guard.Release(token)
	}()
	defer func() {
		if rec := recover(); rec != nil {
			summary = nil
			err = fmt.Errorf("automation panicked: %v", rec)
		}
	}()

	now := time.Now()
	t.logger.Info("automation starting",
		"trigger", kind,
		"at", now.UTC().Format(time.RFC3339),
		"local", now.In(t.location).Format("2006-01-02 15:04:05"),
	)
	summary = t.runner.RunAll(ctx, kind)
	return summary, nil
}

func (t *Trigger) ctxOrBackground() context.Context {
	if t.ctx != nil {
		return t.ctx
	}
	return context.Background()
}
