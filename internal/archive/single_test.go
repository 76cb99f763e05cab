package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type singleEvents struct {
	opened      []OpenEvent
	news        int
	showOpens   int
	saves       []string
	unknownPath []string
	confirms    []string
	changed     []string
	errors      []string
	winClosed   int
}

func recordSingle(s *Single) *singleEvents {
	ev := &singleEvents{}
	s.OnOpened(func(e OpenEvent) { ev.opened = append(ev.opened, e) })
	s.OnNew(func() { ev.news++ })
	s.OnShowOpen(func() { ev.showOpens++ })
	s.OnSave(func(path string) { ev.saves = append(ev.saves, path) })
	s.OnSaveUnknownPath(func(name string) { ev.unknownPath = append(ev.unknownPath, name) })
	s.OnCloseConfirm(func(name string) { ev.confirms = append(ev.confirms, name) })
	s.OnFileChanged(func(path string) { ev.changed = append(ev.changed, path) })
	s.OnError(func(msg string) { ev.errors = append(ev.errors, msg) })
	s.OnWindowClose(func() { ev.winClosed++ })
	return ev
}

func newTestSingle(opts Options) *Single {
	if opts.Extension == "" {
		opts.Extension = "sql"
	}
	return NewSingle(opts)
}

// markDirty delivers the two change notifications a real buffer fires
// after a fresh document: the first is the programmatic load and is
// swallowed, the second is the user edit.
func markDirty(s *Single) {
	s.NotifyChanged()
	s.NotifyChanged()
	s.Drain()
}

func TestSingle_InitialState(t *testing.T) {
	s := newTestSingle(Options{})
	cur := s.Current()
	assert.Empty(t, cur.Path)
	require.NotNil(t, cur.LastSaved, "a fresh document starts clean")
	assert.True(t, cur.JustOpened)
}

func TestSingle_ChangeSwallowedOnceAfterFresh(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.NotifyChanged()
	s.Drain()
	assert.Empty(t, ev.changed, "the programmatic buffer load is not a user edit")
	require.NotNil(t, s.Current().LastSaved)

	s.NotifyChanged()
	s.Drain()
	require.Len(t, ev.changed, 1)
	assert.Empty(t, ev.changed[0], "untitled documents report an empty path")
	assert.Nil(t, s.Current().LastSaved)

	s.NotifyChanged()
	s.Drain()
	assert.Len(t, ev.changed, 1, "already-dirty documents fire no duplicate notification")
}

func TestSingle_New_CleanReplaces(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.RequestNew(false)
	s.Drain()

	assert.Equal(t, 1, ev.news)
	assert.Empty(t, ev.confirms)
}

func TestSingle_New_DirtyNeedsConfirmation(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)
	markDirty(s)

	s.RequestNew(false)
	s.Drain()
	require.Len(t, ev.confirms, 1)
	assert.Equal(t, "Untitled.sql", ev.confirms[0])
	assert.Zero(t, ev.news, "replacement waits for the confirmation")

	// User discards; the pending new-document request completes.
	s.RequestFileClose()
	s.Drain()
	assert.Equal(t, 1, ev.news)
	require.NotNil(t, s.Current().LastSaved, "replacement document starts clean")
}

func TestSingle_New_ForceSkipsConfirmation(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)
	markDirty(s)

	s.RequestNew(true)
	s.Drain()

	assert.Equal(t, 1, ev.news)
	assert.Empty(t, ev.confirms)
}

func TestSingle_Open_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.sql", "select 1;")

	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.RequestOpen(path)
	s.Drain()

	require.Len(t, ev.opened, 1)
	assert.Equal(t, OpenEvent{Path: path, Content: "select 1;"}, ev.opened[0])
	assert.Equal(t, path, s.Current().Path)
	require.NotNil(t, s.Current().LastSaved)

	// The collaborator repopulates the buffer after the open; that
	// change notification must not dirty the document.
	s.NotifyChanged()
	s.Drain()
	assert.Empty(t, ev.changed)

	s.NotifyChanged()
	s.Drain()
	require.Len(t, ev.changed, 1)
	assert.Equal(t, path, ev.changed[0])
}

func TestSingle_Open_SamePathIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.sql", "x")

	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.RequestOpen(path)
	s.Drain()
	s.RequestOpen(path)
	s.Drain()

	assert.Len(t, ev.opened, 1, "reopening the current path is a no-op")
}

func TestSingle_Open_MissingFile(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.RequestOpen(filepath.Join(t.TempDir(), "missing.sql"))
	s.Drain()

	assert.Empty(t, ev.opened)
	require.Len(t, ev.errors, 1)
	assert.Empty(t, s.Current().Path, "a failed open leaves the document untouched")
}

func TestSingle_Open_SizeCap(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "big.sql", "0123456789abcdef")

	s := newTestSingle(Options{MaxFileBytes: 8})
	ev := recordSingle(s)

	s.RequestOpen(path)
	s.Drain()

	assert.Empty(t, ev.opened)
	require.Len(t, ev.errors, 1)
	assert.Equal(t, "file extrapolates maximum size", ev.errors[0])
}

func TestSingle_Save_UnknownPath(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.RequestSave()
	s.Drain()

	require.Len(t, ev.unknownPath, 1)
	assert.Equal(t, "Untitled.sql", ev.unknownPath[0])
}

func TestSingle_SaveAs_WritesAndAdoptsPath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.sql")

	s := newTestSingle(Options{})
	ev := recordSingle(s)
	s.OnBufferRead(func() string { return "select 42;" })
	markDirty(s)

	s.RequestSaveAs(target)
	s.Drain()

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "select 42;", string(data))

	require.Len(t, ev.saves, 1)
	assert.Equal(t, target, ev.saves[0])
	assert.Equal(t, target, s.Current().Path)
	assert.NotNil(t, s.Current().LastSaved, "a successful save marks the document clean")
}

func TestSingle_Save_UsesCurrentPath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.sql")

	content := "first"
	s := newTestSingle(Options{})
	ev := recordSingle(s)
	s.OnBufferRead(func() string { return content })

	s.RequestSaveAs(target)
	s.Drain()

	content = "second"
	markDirty(s)
	s.RequestSave()
	s.Drain()

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Len(t, ev.saves, 2)
	assert.Empty(t, ev.unknownPath)
}

func TestSingle_Save_DirectoryTarget(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)
	s.OnBufferRead(func() string { return "data" })

	s.RequestSaveAs(t.TempDir())
	s.Drain()

	require.Len(t, ev.errors, 1)
	assert.Equal(t, "tried to save file to directory path", ev.errors[0])
}

func TestSingle_ShowOpen_Clean(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.RequestShowOpen()
	s.Drain()

	assert.Equal(t, 1, ev.showOpens)
	assert.Empty(t, ev.confirms)
}

func TestSingle_ShowOpen_DirtyConfirmThenDialog(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)
	markDirty(s)

	s.RequestShowOpen()
	s.Drain()
	require.Len(t, ev.confirms, 1)
	assert.Zero(t, ev.showOpens)

	s.RequestFileClose()
	s.Drain()
	assert.Equal(t, 1, ev.showOpens, "the pending open dialog follows the discard")
}

func TestSingle_WindowClose_Clean(t *testing.T) {
	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.RequestWindowClose()
	s.Drain()

	assert.Equal(t, 1, ev.winClosed)
	assert.Empty(t, ev.confirms)
}

func TestSingle_WindowClose_DirtyConfirmThenClose(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.sql", "x")

	s := newTestSingle(Options{})
	ev := recordSingle(s)

	s.RequestOpen(path)
	s.Drain()
	markDirty(s)

	s.RequestWindowClose()
	s.Drain()
	require.Len(t, ev.confirms, 1)
	assert.Equal(t, path, ev.confirms[0], "confirmation names the dirty document")
	assert.Zero(t, ev.winClosed)

	s.RequestFileClose()
	s.Drain()
	assert.Equal(t, 1, ev.winClosed)
}

func TestSingle_Run_ProcessesFromOtherGoroutines(t *testing.T) {
	s := newTestSingle(Options{})

	created := make(chan struct{}, 1)
	s.OnNew(func() { created <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.RequestNew(false)

	select {
	case <-created:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer loop did not process the request")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
