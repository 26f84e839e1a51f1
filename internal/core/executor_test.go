package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"resumecron/internal/logging"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordRun(ctx context.Context, summary *Summary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, title, body string) error {
	args := m.Called(ctx, title, body)
	return args.Error(0)
}

func fixedUnit(ok bool) UnitFactory {
	return func() Unit {
		m := &MockUnit{}
		m.On("Run", mock.Anything).Return(ok, nil)
		return m
	}
}

func newTestOrchestrator(units ...Registration) *Orchestrator {
	r := NewRetrier(0, logging.Discard()).WithSleep((&recordedSleeps{}).sleep)
	return NewOrchestrator(r, 2, logging.Discard(), units...)
}

func TestRunAllSingleFailingUnit(t *testing.T) {
	o := newTestOrchestrator(Registration{Name: "Naukri", Factory: fixedUnit(false)})

	summary := o.RunAll(context.Background(), TriggerManual)

	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Success)
	res := summary.Results[0]
	assert.Equal(t, "Naukri", res.Name)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.False(t, res.Timestamp.IsZero())
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, TriggerManual, summary.Trigger)
}

func TestRunAllSuccessIsConjunction(t *testing.T) {
	tests := []struct {
		name    string
		results []bool
		want    bool
	}{
		{"all pass", []bool{true, true}, true},
		{"one fails", []bool{true, false}, false},
		{"all fail", []bool{false, false}, false},
		{"no units", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var regs []Registration
			for i, ok := range tt.results {
				regs = append(regs, Registration{Name: string(rune('A' + i)), Factory: fixedUnit(ok)})
			}
			summary := newTestOrchestrator(regs...).RunAll(context.Background(), TriggerScheduled)
			assert.Equal(t, tt.want, summary.Success)
			assert.Len(t, summary.Results, len(tt.results))
		})
	}
}

func TestRunAllNeverHaltsEarly(t *testing.T) {
	calls := map[string]int{}
	counting := func(name string, ok bool) UnitFactory {
		return func() Unit {
			calls[name]++
			m := &MockUnit{}
			m.On("Run", mock.Anything).Return(ok, nil)
			return m
		}
	}
	o := newTestOrchestrator(
		Registration{Name: "first", Factory: counting("first", false)},
		Registration{Name: "second", Factory: counting("second", true)},
	)

	summary := o.RunAll(context.Background(), TriggerScheduled)

	assert.Equal(t, 2, calls["first"])
	assert.Equal(t, 1, calls["second"])
	second, ok := summary.Result("second")
	require.True(t, ok)
	assert.True(t, second.Success)
}

func TestRunAllCapturesPanicFromRetrier(t *testing.T) {
	o := newTestOrchestrator(Registration{Name: "broken"})
	o.retrier = nil

	summary := o.RunAll(context.Background(), TriggerManual)

	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Results[0].Success)
	assert.NotEmpty(t, summary.Results[0].Error)
	assert.False(t, summary.Results[0].Timestamp.IsZero())
}

func TestRunAllRecordsAndNotifies(t *testing.T) {
	rec := &MockRecorder{}
	rec.On("RecordRun", mock.Anything, mock.AnythingOfType("*core.Summary")).Return(errors.New("disk full"))
	notifier := &MockNotifier{}
	notifier.On("Send", mock.Anything, "Resume automation failed", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "Naukri")
	})).Return(nil)

	o := newTestOrchestrator(Registration{Name: "Naukri", Factory: fixedUnit(false)}).
		WithRecorder(rec).
		WithNotifier(notifier)

	summary := o.RunAll(context.Background(), TriggerScheduled)

	assert.False(t, summary.Success)
	rec.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRunAllDoesNotNotifyOnSuccess(t *testing.T) {
	notifier := &MockNotifier{}
	o := newTestOrchestrator(Registration{Name: "Naukri", Factory: fixedUnit(true)}).WithNotifier(notifier)

	summary := o.RunAll(context.Background(), TriggerScheduled)

	assert.True(t, summary.Success)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunAllDuration(t *testing.T) {
	o := newTestOrchestrator(Registration{Name: "Naukri", Factory: fixedUnit(true)})
	base := time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)
	ticks := 0
	o.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}

	summary := o.RunAll(context.Background(), TriggerScheduled)

	assert.Equal(t, base.Add(time.Second), summary.StartedAt)
	assert.Equal(t, 2*time.Second, summary.Duration)
}
