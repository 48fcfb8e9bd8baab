package filetrack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Observe_RecordsTouchedTools(t *testing.T) {
	tr := New(t.TempDir())
	tr.Observe("Write", map[string]any{"file_path": "a.go"})
	tr.Observe("Bash", map[string]any{"command": "go test ./..."})

	assert.Len(t, tr.touched, 2)
	tr.Reset()
	assert.Empty(t, tr.touched)
}

func TestTracker_Observe_TracksReadAndModifiedSets(t *testing.T) {
	dir := t.TempDir()
	tr := New(dir)

	tr.Observe("Write", map[string]any{"file_path": "a.go"})
	tr.Observe("Write", map[string]any{"file_path": "a.go"}) // duplicate, same set member
	tr.Observe("Read", map[string]any{"file_path": "b.go"})
	tr.Observe("Bash", map[string]any{"command": "ls"}) // no file_path, ignored for sets

	mods := tr.ModifiedPaths()
	reads := tr.ReadPaths()
	require.Len(t, mods, 1)
	require.Len(t, reads, 1)
	assert.Equal(t, filepath.Join(dir, "a.go"), mods[0])
	assert.Equal(t, filepath.Join(dir, "b.go"), reads[0])

	tr.Reset()
	assert.Empty(t, tr.ModifiedPaths())
	assert.Empty(t, tr.ReadPaths())
}

func TestTracker_Observe_IgnoresUnknownTool(t *testing.T) {
	tr := New(t.TempDir())
	tr.Observe("WebFetch", map[string]any{"file_path": "a.go"})
	assert.Empty(t, tr.ModifiedPaths())
	assert.Empty(t, tr.ReadPaths())
}

func TestTracker_Changes_ClassifiesAddedModifiedDeleted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "edited.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	tr := New(dir)
	tr.runGit = func(ctx context.Context, args ...string) (string, error) {
		switch args[0] {
		case "status":
			return " M edited.go\n?? new.go\n D removed.go\n", nil
		case "show":
			if len(args) > 1 && args[1] == "HEAD:edited.go" {
				return "package main\n", nil
			}
			if len(args) > 1 && args[1] == "HEAD:removed.go" {
				return "package main\n\nfunc gone() {}\n", nil
			}
			return "", nil
		}
		return "", nil
	}

	changes, err := tr.Changes(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 3)

	byPath := map[string]FileChange{}
	for _, c := range changes {
		byPath[c.Path] = c
	}

	assert.Equal(t, ChangeAdded, byPath["new.go"].Kind)
	assert.Equal(t, ChangeModified, byPath["edited.go"].Kind)
	assert.Greater(t, byPath["edited.go"].Added, 0)
	assert.Equal(t, ChangeDeleted, byPath["removed.go"].Kind)
	assert.Greater(t, byPath["removed.go"].Removed, 0)
}
