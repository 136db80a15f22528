package driver

import "time"

// Phase names reported to observers, timers and the tracer.
const (
	PhaseParse    = "parse"
	PhaseBuild    = "build"
	PhaseSchedule = "schedule"
	PhaseSpill    = "spill"
	PhaseDump     = "dump"
)

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	PhaseStart PhaseStatus = iota
	PhaseEnd
	PhaseFailed
)

// PhaseEvent describes a phase boundary of one unit.
type PhaseEvent struct {
	Path    string
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
	Err     error
}

// PhaseObserver receives phase events emitted by Process.
type PhaseObserver func(PhaseEvent)
