package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"scc/internal/driver"
)

var dotCmd = &cobra.Command{
	Use:   "dot FILE",
	Short: "Dump the graph of a description in Graphviz DOT",
	Args:  cobra.ExactArgs(1),
	RunE:  runDot,
}

func init() {
	dotCmd.Flags().Bool("sorted", false, "dump the scheduled order instead of the graph")
	dotCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
}

func runDot(cmd *cobra.Command, args []string) (err error) {
	sorted, err := cmd.Flags().GetBool("sorted")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { s.close(err) }()

	opts := driver.Options{Dot: driver.DotGraph}
	if sorted {
		opts.Dot = driver.DotOrder
	}
	res, err := s.run("scc dot", args, opts, "")
	if err != nil {
		return err
	}
	dot := res.Files[0].Result.Dot
	if output == "" {
		_, err = io.WriteString(s.out(), dot)
		return err
	}
	if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	if !s.quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
	}
	return nil
}
