package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scc/internal/config"
	"scc/internal/driver"
	"scc/internal/observ"
	"scc/internal/pipeline"
	"scc/internal/prof"
)

// session carries what every command resolves from persistent flags.
type session struct {
	cmd     *cobra.Command
	cfg     config.Config
	color   bool
	quiet   bool
	timer   *observ.Timer
	prof    *prof.Session
	cleanup func(failed bool)
}

func newSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	useColor, err := setupColor(cmd)
	if err != nil {
		return nil, err
	}
	quiet, err := flags.GetBool("quiet")
	if err != nil {
		return nil, err
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return nil, err
	}
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	profiles, err := setupProfiling(cmd)
	if err != nil {
		return nil, err
	}
	cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		_ = profiles.Stop()
		return nil, err
	}
	s := &session{cmd: cmd, cfg: cfg, color: useColor, quiet: quiet, prof: profiles, cleanup: cleanup}
	if timings {
		s.timer = observ.NewTimer()
	}
	return s, nil
}

func (s *session) close(err error) {
	s.cleanup(err != nil)
	if perr := s.prof.Stop(); perr != nil {
		fmt.Fprintf(s.cmd.ErrOrStderr(), "profile: %v\n", perr)
	}
}

func (s *session) out() io.Writer {
	return s.cmd.OutOrStdout()
}

// run processes files through the pipeline, with the progress view when
// --ui allows it. Timings are printed even when some files failed.
func (s *session) run(title string, files []string, opts driver.Options, snapshotDir string) (pipeline.Result, error) {
	flags := s.cmd.Root().PersistentFlags()
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return pipeline.Result{}, err
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return pipeline.Result{}, err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return pipeline.Result{}, err
	}

	opts.Config = s.cfg
	opts.Timer = s.timer
	req := pipeline.Request{
		Files:       files,
		Jobs:        jobs,
		Driver:      opts,
		SnapshotDir: snapshotDir,
	}
	var res pipeline.Result
	if !s.quiet && shouldUseTUI(mode, len(files)) {
		res, err = runPipelineWithUI(s.cmd.Context(), title, &req)
	} else {
		res, err = pipeline.Run(s.cmd.Context(), &req)
	}
	if s.timer != nil {
		if terr := printStageTimings(s.cmd.ErrOrStderr(), res.Timings, s.timer); terr != nil {
			err = errors.Join(err, terr)
		}
	}
	return res, err
}

// each calls fn for every file that completed, separating outputs by a
// blank line.
func (s *session) each(res pipeline.Result, fn func(*driver.Result) error) error {
	first := true
	for _, f := range res.Files {
		if f.Err != nil || f.Result == nil {
			continue
		}
		if !first {
			if _, err := fmt.Fprintln(s.out()); err != nil {
				return err
			}
		}
		first = false
		if err := fn(f.Result); err != nil {
			return err
		}
	}
	return nil
}
