package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"scc/internal/driver"
	"scc/internal/trace"
)

// Request configures a run.
type Request struct {
	Files    []string
	Jobs     int // 0 means GOMAXPROCS
	Driver   driver.Options
	Progress ProgressSink
	// SnapshotDir receives one snapshot per file when Driver.Spill is set.
	SnapshotDir string
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path   string
	Result *driver.Result
	Err    error
}

// Result collects the outcome of every file in request order.
type Result struct {
	Files   []FileResult
	Timings Timings
}

// Failed returns the files that did not complete.
func (r Result) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Run processes every file. A failing file does not stop the others; the
// returned error joins all failures. Cancelling ctx stops files that have
// not started yet.
func Run(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if req == nil {
		return result, fmt.Errorf("missing pipeline request")
	}
	ctx, span := trace.BeginCtx(ctx, trace.ScopeDriver, "pipeline")
	defer span.End("")

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	result.Files = make([]FileResult, len(req.Files))
	for i, path := range req.Files {
		result.Files[i].Path = path
		emit(req.Progress, Event{File: path, Status: StatusQueued})
	}

	var (
		mu      sync.Mutex
		timings Timings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(req.Files))))
	for i, path := range req.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				result.Files[i].Err = err
				emit(req.Progress, Event{File: path, Status: StatusError, Err: err})
				return nil
			}
			opts := req.Driver
			if opts.Spill && req.SnapshotDir != "" {
				opts.Snapshot = SnapshotPath(req.SnapshotDir, path)
			}
			opts.Observer = func(ev driver.PhaseEvent) {
				stage := Stage(ev.Name)
				switch ev.Status {
				case driver.PhaseStart:
					emit(req.Progress, Event{File: path, Stage: stage, Status: StatusWorking})
				case driver.PhaseEnd:
					mu.Lock()
					timings.Add(stage, ev.Elapsed)
					mu.Unlock()
				case driver.PhaseFailed:
					emit(req.Progress, Event{File: path, Stage: stage, Status: StatusError, Err: ev.Err, Elapsed: ev.Elapsed})
				}
				if req.Driver.Observer != nil {
					req.Driver.Observer(ev)
				}
			}
			res, err := driver.Process(gctx, path, opts)
			result.Files[i].Result = res
			result.Files[i].Err = err
			if err == nil {
				emit(req.Progress, Event{File: path, Status: StatusDone})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	result.Timings = timings

	var errs []error
	for _, f := range result.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	span.WithExtra("files", fmt.Sprint(len(req.Files))).WithExtra("failed", fmt.Sprint(len(errs)))
	return result, errors.Join(errs...)
}

// SnapshotPath names the snapshot written for a description file.
func SnapshotPath(dir, file string) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(dir, base+".sccs")
}

func emit(sink ProgressSink, ev Event) {
	if sink != nil {
		sink.OnEvent(ev)
	}
}
