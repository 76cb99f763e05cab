package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casefile/casefile/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSession_OpensAndPersists(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "case.db")
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	out, err := execute(t, "session", "--db", db, file)
	require.NoError(t, err)
	assert.Contains(t, out, "session closed: 1 open, 1 recent")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	paths, err := st.RecentPaths(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{file}, paths)

	fs, err := st.LoadFinalState(context.Background())
	require.NoError(t, err)
	require.Len(t, fs.Files, 1)
	assert.Equal(t, file, fs.Files[0].Path)
	assert.Equal(t, "hello", fs.Files[0].Content)
}

func TestSession_KeepsRecentAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "case.db")
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := execute(t, "session", "--db", db, file)
	require.NoError(t, err)

	// An empty follow-up session reloads and re-persists the snapshot.
	out, err := execute(t, "session", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 recent")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	paths, err := st.RecentPaths(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{file}, paths)
}

func TestSession_MissingFileStillCloses(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "case.db")

	out, err := execute(t, "session", "--db", db, filepath.Join(dir, "missing.txt"))
	require.NoError(t, err, "a failed open resolves the session, it does not hang it")
	assert.Contains(t, out, "0 open")
}

func TestSession_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_open_files: 0\n"), 0o644))

	_, err := execute(t, "session", "--config", cfgPath, "--db", filepath.Join(dir, "case.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
