package main

import (
	"errors"

	"github.com/spf13/cobra"

	"scc/internal/driver"
	"scc/internal/ui"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule FILE...",
	Short: "Build graph descriptions and print their scheduled order",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().Int("width", 48, "truncate node labels to this many columns (0 = no limit)")
}

func runSchedule(cmd *cobra.Command, args []string) (err error) {
	width, err := cmd.Flags().GetInt("width")
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { s.close(err) }()

	opts := driver.Options{}
	snapshotDir := ""
	if s.cfg.Output.Snapshot {
		opts.Spill = true
		snapshotDir = s.cfg.Output.Dir
	}
	res, runErr := s.run("scc schedule", args, opts, snapshotDir)
	printErr := s.each(res, func(r *driver.Result) error {
		return ui.RenderSteps(s.out(), r, ui.TableOptions{Color: s.color, Width: width})
	})
	return errors.Join(runErr, printErr)
}
