package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lc168/goclangd/internal/manifest"
	"github.com/lc168/goclangd/internal/store"
	"github.com/lc168/goclangd/internal/types"
)

func TestBuildWorklistIncludesUnindexedFiles(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.c")
	require.NoError(t, writeFile(srcPath, "void foo(){}\n"))

	st := openCoordStore(t)
	c := New(st, Options{Jobs: 1})

	m := &manifest.Manifest{Entries: []types.ManifestEntry{
		{Directory: dir, File: "a.c", Arguments: []string{"cc", "a.c"}},
	}}

	items, err := c.BuildWorklist(m)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestBuildWorklistSkipsUnchangedCompletedFiles(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.c")
	require.NoError(t, writeFile(srcPath, "void foo(){}\n"))

	st := openCoordStore(t)
	c := New(st, Options{Jobs: 1})

	canonical := canonicalOrEmpty(types.ManifestEntry{Directory: dir, File: "a.c"})
	require.NotEmpty(t, canonical)
	mtime, ok := statMTime(canonical)
	require.True(t, ok)

	require.NoError(t, st.SaveIndexResult(canonical, mtime, nil, nil))

	m := &manifest.Manifest{Entries: []types.ManifestEntry{
		{Directory: dir, File: "a.c", Arguments: []string{"cc", "a.c"}},
	}}

	items, err := c.BuildWorklist(m)
	require.NoError(t, err)
	require.Empty(t, items, "a file already completed at its current mtime must not be rescheduled")
}

func openCoordStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path, true)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
