package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scc/internal/config"
	"scc/internal/driver"
	"scc/internal/irfile"
	"scc/internal/irstore"
)

const good = `
[[type]]
name = "int"
kind = "int"

[[stmt]]
op = "node"
name = "a"
kind = "lit"
type = "int"
value = 7

[[stmt]]
op = "node"
name = "r"
kind = "return"
type = "int"
left = "a"
`

const bad = `
[[stmt]]
op = "node"
name = "a"
kind = "lit"
type = "missing"
`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestRunProcessesEveryFile(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "one.toml", good),
		writeFile(t, dir, "two.toml", good),
		writeFile(t, dir, "three.toml", good),
	}
	rec := &Recorder{}
	res, err := Run(context.Background(), &Request{
		Files:    files,
		Jobs:     2,
		Driver:   driver.Options{Config: config.Default()},
		Progress: rec,
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	for i, f := range res.Files {
		assert.Equal(t, files[i], f.Path)
		require.NoError(t, f.Err)
		require.Len(t, f.Result.Steps, 2)
		assert.Equal(t, "lit 7", f.Result.Steps[0].Label)
	}
	assert.Empty(t, res.Failed())
	assert.True(t, res.Timings.Has(StageSchedule))
	assert.False(t, res.Timings.Has(StageSpill))

	done := 0
	for _, ev := range rec.Events() {
		if ev.Status == StatusDone {
			done++
		}
	}
	assert.Equal(t, 3, done)
}

func TestRunJoinsFailures(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "ok.toml", good),
		writeFile(t, dir, "bad.toml", bad),
	}
	rec := &Recorder{}
	res, err := Run(context.Background(), &Request{
		Files:    files,
		Driver:   driver.Options{Config: config.Default()},
		Progress: rec,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, irfile.ErrUnknownName)
	require.Len(t, res.Failed(), 1)
	assert.Equal(t, files[1], res.Failed()[0].Path)
	assert.NotNil(t, res.Files[0].Result)

	var failed []Event
	for _, ev := range rec.Events() {
		if ev.Status == StatusError {
			failed = append(failed, ev)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, StageBuild, failed[0].Stage)
}

func TestRunWritesSnapshots(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	file := writeFile(t, dir, "snap.toml", good)
	res, err := Run(context.Background(), &Request{
		Files:       []string{file},
		Driver:      driver.Options{Config: config.Default(), Spill: true},
		SnapshotDir: out,
	})
	require.NoError(t, err)
	path := SnapshotPath(out, file)
	assert.Equal(t, filepath.Join(out, "snap.sccs"), path)
	assert.Equal(t, path, res.Files[0].Result.Spill.Snapshot)

	snap, err := irstore.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "snap", snap.Unit)
	assert.Len(t, snap.Written, 2)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, &Request{
		Files:  []string{writeFile(t, dir, "one.toml", good)},
		Driver: driver.Options{Config: config.Default()},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res.Files[0].Result)
}

func TestRunRequiresRequest(t *testing.T) {
	_, err := Run(context.Background(), nil)
	assert.Error(t, err)
}
