package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scc/internal/driver"
	"scc/internal/ui"
)

var spillCmd = &cobra.Command{
	Use:   "spill FILE...",
	Short: "Schedule descriptions and save the offset-addressed form as snapshots",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpill,
}

func init() {
	spillCmd.Flags().StringP("output", "o", "", "snapshot directory (default: [output] dir of scc.toml)")
}

func runSpill(cmd *cobra.Command, args []string) (err error) {
	dir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { s.close(err) }()
	if dir == "" {
		dir = s.cfg.Output.Dir
	}

	res, runErr := s.run("scc spill", args, driver.Options{Spill: true}, dir)
	printErr := s.each(res, func(r *driver.Result) error {
		if !s.quiet {
			if err := ui.RenderSteps(s.out(), r, ui.TableOptions{Color: s.color}); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(s.out(), "wrote %s\n", r.Spill.Snapshot)
		return err
	})
	return errors.Join(runErr, printErr)
}
