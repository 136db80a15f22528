// Package trace records what the scc driver is doing: one span per unit and
// per pass (build, schedule, spill, dump), with node-level points at the
// debug level.
//
// # Usage
//
//	scc schedule --trace=- --trace-level=phase body.toml
//
// # Tracers
//
//   - Nop: zero-overhead tracer used when tracing is off
//   - StreamTracer: writes each event to a file or stderr
//   - RingTracer: keeps the last events in memory for a dump on failure
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: ring dump on failure only
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: per-unit events
//   - LevelDebug: everything including nodes
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "schedule", parentID)
//	defer span.End("")
package trace
