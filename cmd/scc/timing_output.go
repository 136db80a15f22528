package main

import (
	"fmt"
	"io"
	"time"

	"scc/internal/observ"
	"scc/internal/pipeline"
)

var timedStages = []struct {
	stage pipeline.Stage
	label string
}{
	{pipeline.StageParse, "parsed"},
	{pipeline.StageBuild, "built"},
	{pipeline.StageSchedule, "scheduled"},
	{pipeline.StageSpill, "spilled"},
	{pipeline.StageDump, "dumped"},
}

// printStageTimings prints the summed duration of every stage that ran,
// followed by the per-unit phase breakdown of the timer.
func printStageTimings(out io.Writer, timings pipeline.Timings, timer *observ.Timer) error {
	if out == nil {
		return nil
	}
	for _, st := range timedStages {
		if !timings.Has(st.stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", st.label, toMillis(timings.Duration(st.stage))); err != nil {
			return err
		}
	}
	if timer == nil {
		return nil
	}
	_, err := io.WriteString(out, timer.Summary())
	return err
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
