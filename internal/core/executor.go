package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registration names a unit factory the orchestrator runs.
type Registration struct {
	Name    string
	Factory UnitFactory
}

// Recorder keeps finished run summaries.
type Recorder interface {
	RecordRun(ctx context.Context, summary *Summary) error
}

// Notifier announces failed runs.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Orchestrator runs every registered unit through the retrier once per
// invocation and aggregates the results.
type Orchestrator struct {
	units       []Registration
	retrier     *Retrier
	maxAttempts int
	recorder    Recorder
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewOrchestrator creates an orchestrator for the given units.
func NewOrchestrator(retrier *Retrier, maxAttempts int, logger *slog.Logger, units ...Registration) *Orchestrator {
	return &Orchestrator{
		units:       units,
		retrier:     retrier,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// WithRecorder stores every summary in r.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	o.recorder = r
	return o
}

// WithNotifier sends failed summaries to n.
func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// RunAll attempts each unit exactly once through the retrier, never stopping
// early. Summary.Success is the AND of all unit results.
func (o *Orchestrator) RunAll(ctx context.Context, trigger TriggerKind) *Summary {
	o.logger.Info("starting job automation process", "units", len(o.units), "trigger", trigger)
	started := o.now()
	summary := &Summary{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started.UTC(),
		Results:   make([]UnitResult, 0, len(o.units)),
	}

	for _, reg := range o.units {
		summary.Results = append(summary.Results, o.runUnit(ctx, reg))
	}

	summary.Duration = o.now().Sub(started)
	summary.Success = summary.SuccessCount() == len(summary.Results)

	o.logger.Info("automation completed",
		"run_id", summary.ID,
		"succeeded", summary.SuccessCount(),
		"total", len(summary.Results),
		"duration", summary.Duration,
	)
	for _, r := range summary.Results {
		o.logger.Info("unit result", "unit", r.Name, "success", r.Success, "attempts", r.Attempts, "err", r.Error)
	}

	o.record(ctx, summary)
	if !summary.Success {
		o.notify(ctx, summary)
	}
	return summary
}

func (o *Orchestrator) runUnit(ctx context.Context, reg Registration) (result UnitResult) {
	result.Name = reg.Name
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("critical error in unit", "unit", reg.Name, "panic", rec)
			result.Success = false
			result.Error = fmt.Sprint(rec)
		}
		result.Timestamp = o.now().UTC()
	}()

	outcome := o.retrier.RunDetailed(ctx, reg.Factory, reg.Name, o.maxAttempts)
	result.Success = outcome.Success
	result.Attempts = outcome.Attempts
	if !outcome.Success && outcome.LastErr != nil {
		result.Error = outcome.LastErr.Error()
	}
	return result
}

func (o *Orchestrator) record(ctx context.Context, summary *Summary) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordRun(ctx, summary); err != nil {
		o.logger.Warn("record run", "run_id", summary.ID, "err", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, summary *Summary) {
	if o.notifier == nil {
		return
	}
	var failed []string
	for _, r := range summary.Results {
		if !r.Success {
			failed = append(failed, r.Name)
		}
	}
	title := "Resume automation failed"
	body := fmt.Sprintf("%d/%d units succeeded; failed: %s (run %s)",
		summary.SuccessCount(), len(summary.Results), strings.Join(failed, ", "), summary.ID)
	if err := o.notifier.Send(ctx, title, body); err != nil {
		o.logger.Warn("send notification", "run_id", summary.ID, "err", err)
	}
}
