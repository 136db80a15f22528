package main

import (
	"errors"

	"github.com/spf13/cobra"

	"scc/internal/driver"
	"scc/internal/ui"
)

var typesCmd = &cobra.Command{
	Use:   "types FILE...",
	Short: "Render the declared types of descriptions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTypes,
}

func runTypes(cmd *cobra.Command, args []string) (err error) {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { s.close(err) }()

	res, runErr := s.run("scc types", args, driver.Options{Types: true}, "")
	printErr := s.each(res, func(r *driver.Result) error {
		return ui.RenderTypes(s.out(), r)
	})
	return errors.Join(runErr, printErr)
}
