package profiling

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotWriter_Capture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public")
	w := NewSnapshotWriter(DirStorage{}, SnapshotOptions{Dir: dir, GCBeforeSnapshot: true})

	// Keep some allocations live so the heap profile has content.
	retained := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		retained = append(retained, make([]byte, 64<<10))
	}

	path, err := w.Capture()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, HeapSnapshotFile), path)
	assert.Equal(t, path, w.Path())
	assert.Len(t, retained, 64)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	p, err := profile.Parse(file)
	require.NoError(t, err)

	var types []string
	for _, st := range p.SampleType {
		types = append(types, st.Type)
	}
	assert.Contains(t, types, "inuse_space")
	assert.Contains(t, types, "alloc_space")
}

func TestSnapshotWriter_ReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	storage := &recordingStorage{}
	w := NewSnapshotWriter(storage, SnapshotOptions{Dir: dir})
	w.write = func(out io.Writer, _ bool) error {
		_, err := out.Write([]byte("snapshot"))
		return err
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, HeapSnapshotFile), []byte("old"), 0o644))

	_, err := w.Capture()
	require.NoError(t, err)

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(data))
	assert.Equal(t, []string{
		"mkdir " + filepath.Base(dir),
		"remove heap.pprof",
		"write heap.pprof",
	}, storage.ops)
}

func TestSnapshotWriter_PropagatesStorageFailure(t *testing.T) {
	storage := &recordingStorage{mkdirErr: errors.New("disk full")}
	w := NewSnapshotWriter(storage, SnapshotOptions{Dir: t.TempDir()})

	path, err := w.Capture()
	require.Error(t, err)
	assert.Empty(t, path)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSnapshotWriter_PropagatesProfileFailure(t *testing.T) {
	w := NewSnapshotWriter(DirStorage{}, SnapshotOptions{Dir: t.TempDir()})
	w.write = func(io.Writer, bool) error { return errors.New("boom") }

	_, err := w.Capture()
	require.Error(t, err)
	assert.NoFileExists(t, w.Path())
}

func TestDirStorage_RemoveMissingIsNotAnError(t *testing.T) {
	s := DirStorage{}
	assert.NoError(t, s.Remove(filepath.Join(t.TempDir(), "missing.pprof")))
}
