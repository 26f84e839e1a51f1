package core

import (
	"time"
)

// TriggerKind describes what started an automation run.
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerManual    TriggerKind = "manual"
)

// UnitResult records the outcome of one automation unit within a run.
type UnitResult struct {
	Name      string    `json:"name"`
	Success   bool      `json:"success"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Summary aggregates one orchestrator invocation.
type Summary struct {
	ID        string        `json:"id"`
	Trigger   TriggerKind   `json:"trigger"`
	Success   bool          `json:"success"`
	Results   []UnitResult  `json:"results"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// SuccessCount returns how many units succeeded.
func (s *Summary) SuccessCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Result looks up a unit result by name.
func (s *Summary) Result(name string) (UnitResult, bool) {
	for _, r := range s.Results {
		if r.Name == name {
			return r, true
		}
	}
	return UnitResult{}, false
}
