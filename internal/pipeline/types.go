// Package pipeline runs the driver over many description files in
// parallel and reports per-file progress.
package pipeline

import (
	"time"

	"scc/internal/driver"
)

// Stage describes a high-level pipeline phase.
type Stage string

const (
	StageParse    Stage = driver.PhaseParse
	StageBuild    Stage = driver.PhaseBuild
	StageSchedule Stage = driver.PhaseSchedule
	StageSpill    Stage = driver.PhaseSpill
	StageDump     Stage = driver.PhaseDump
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for a file, or for the whole run when File is empty.
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds the summed duration of each stage across files.
type Timings struct {
	stages map[Stage]time.Duration
}

// Add accumulates dur for stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
	t.stages[stage] += dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
