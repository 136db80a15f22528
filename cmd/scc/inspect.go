package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scc/internal/driver"
	"scc/internal/ui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect SNAPSHOT...",
	Short: "Re-read saved snapshots in scheduled order",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) (err error) {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { s.close(err) }()

	var errs []error
	for i, path := range args {
		ins, err := driver.Inspect(cmd.Context(), path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i > 0 {
			fmt.Fprintln(s.out())
		}
		if err := ui.RenderInspection(s.out(), ins, ui.TableOptions{Color: s.color}); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}
