package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"scc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "scc",
	Short:         "IR core of the scc compiler",
	Long:          `scc builds, schedules, spills and dumps the intermediate representation of graph description files`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(dotCmd)
	rootCmd.AddCommand(spillCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.String("config", "", "path to scc.toml (default: search upwards from the working directory)")
	flags.Int("ptr-size", 0, "pointer size in bytes, overrides [target] ptr_size (4|8)")
	flags.IntP("jobs", "j", 0, "files processed in parallel (0 = GOMAXPROCS)")
	flags.String("ui", "auto", "progress UI (auto|on|off)")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "", "trace storage mode (stream|ring|both)")
	flags.Int("trace-ring-size", 0, "ring buffer capacity")
	flags.Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")
	flags.String("cpu-profile", "", "write a CPU profile to file")
	flags.String("mem-profile", "", "write a heap profile to file on exit")
	flags.String("runtime-trace", "", "write a Go runtime execution trace to file")
}

// main executes the root command. Errors exit with status 1.
func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// setupColor applies --color to fatih/color and reports whether tables
// should be styled.
func setupColor(cmd *cobra.Command) (bool, error) {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	var on bool
	switch value {
	case "on":
		on = true
	case "off":
		on = false
	case "auto", "":
		on = isTerminal(os.Stdout)
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	color.NoColor = !on
	return on, nil
}
