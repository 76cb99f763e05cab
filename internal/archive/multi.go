package archive

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultMaxOpenFiles bounds the document registry. Opening or
// creating a document beyond this yields an admission error.
const DefaultMaxOpenFiles = 16

// DefaultMaxFileBytes bounds the decoded size of an opened file.
// Oversized files are rejected after the read, before they enter the
// registry; the limit keeps a pathological file from freezing the
// editing surface.
const DefaultMaxFileBytes = 5_000_000

// Options configures a Multi or Single engine.
type Options struct {
	// Extension is the display-name extension of untitled documents
	// ("Untitled 1.<ext>").
	Extension string

	// MaxOpenFiles overrides DefaultMaxOpenFiles when positive.
	MaxOpenFiles int

	// MaxFileBytes overrides DefaultMaxFileBytes when positive.
	MaxFileBytes int

	// IDs generates document IDs. Defaults to UUIDv7Generator.
	IDs IDGenerator
}

func (o Options) withDefaults() Options {
	if o.Extension == "" {
		o.Extension = "txt"
	}
	if o.MaxOpenFiles <= 0 {
		o.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	if o.IDs == nil {
		o.IDs = UUIDv7Generator{}
	}
	return o
}

// CloseEvent is the payload of the file-closed notification.
type CloseEvent struct {
	File OpenedFile
	// Remaining is the registry size after the close.
	Remaining int
}

// RenameEvent is the payload of the document-renamed notification,
// fired when a save turns an untitled document into a named one.
type RenameEvent struct {
	Index int
	Name  string
}

// Multi is the multi-document archiver engine. It owns the document
// registry, the send side of the action queue, and the event sink.
//
// Thread-safety model:
//   - Request methods (RequestOpen, RequestSave, ...): any goroutine
//   - Run: exactly one goroutine
//   - FinalState: any goroutine
//
// All registry mutation happens inside the consumer loop.
type Multi struct {
	opts  Options
	queue *queue[Action]
	clk   *clock

	// Consumer-owned state. Touched only by handle().
	files      []OpenedFile
	recent     []OpenedFile
	selected   int
	prefix     string
	lastClosed *OpenedFile
	winClose   bool
	openWorker workerHandle
	saveWorker workerHandle

	finalMu sync.Mutex
	final   FinalState

	onNew             hooks[OpenedFile]
	onReopen          hooks[OpenedFile]
	onAdded           hooks[OpenedFile]
	onOpened          hooks[OpenedFile]
	onSelected        hooks[*OpenedFile]
	onClosed          hooks[CloseEvent]
	onCloseConfirm    hooks[OpenedFile]
	onFileChanged     hooks[OpenedFile]
	onFilePersisted   hooks[OpenedFile]
	onNameChanged     hooks[RenameEvent]
	onSaveUnknownPath hooks[string]
	onWindowClose     hooks[struct{}]
	onError           hooks[string]
	onBufferRead      valuedHook[int, string]
}

// NewMulti creates a multi-document engine. Run (or Drain) must be
// called for requests to be processed.
func NewMulti(opts Options) *Multi {
	return &Multi{
		opts:     opts.withDefaults(),
		queue:    newQueue[Action](),
		clk:      &clock{},
		selected: -1,
	}
}

// Subscription API. Binding is append-only; callbacks run
// synchronously on the consumer goroutine in registration order.

// OnNew fires when a new untitled document is created.
func (m *Multi) OnNew(f func(OpenedFile)) { m.onNew.bind(f) }

// OnReopen fires when the user requested to open a file that was
// already open. Gives the collaborator a chance to focus the existing
// view.
func (m *Multi) OnReopen(f func(OpenedFile)) { m.onReopen.bind(f) }

// OnAdded fires when a file is appended to the recent list via
// AddFiles.
func (m *Multi) OnAdded(f func(OpenedFile)) { m.onAdded.bind(f) }

// OnOpened fires when a background open completes and the file has
// entered the registry.
func (m *Multi) OnOpened(f func(OpenedFile)) { m.onOpened.bind(f) }

// OnSelected fires when the selection changes; nil means no selection.
func (m *Multi) OnSelected(f func(*OpenedFile)) { m.onSelected.bind(f) }

// OnClosed fires after a document leaves the registry.
func (m *Multi) OnClosed(f func(CloseEvent)) { m.onClosed.bind(f) }

// OnCloseConfirm fires when a close touches unsaved changes and the
// collaborator must confirm (re-issuing a forced close) or abandon.
func (m *Multi) OnCloseConfirm(f func(OpenedFile)) { m.onCloseConfirm.bind(f) }

// OnFileChanged fires when a document transitions clean to dirty.
func (m *Multi) OnFileChanged(f func(OpenedFile)) { m.onFileChanged.bind(f) }

// OnFilePersisted fires when a document transitions dirty to clean.
func (m *Multi) OnFilePersisted(f func(OpenedFile)) { m.onFilePersisted.bind(f) }

// OnNameChanged fires when a save renames an untitled document.
func (m *Multi) OnNameChanged(f func(RenameEvent)) { m.onNameChanged.bind(f) }

// OnSaveUnknownPath fires when a save needs a target path from the
// collaborator; carries the document's display name.
func (m *Multi) OnSaveUnknownPath(f func(string)) { m.onSaveUnknownPath.bind(f) }

// OnWindowClose fires when the window may actually close.
func (m *Multi) OnWindowClose(f func()) { m.onWindowClose.bind(func(struct{}) { f() }) }

// OnError fires with a human-readable message for every recovered
// failure (admission, sandbox, I/O).
func (m *Multi) OnError(f func(string)) { m.onError.bind(f) }

// OnBufferRead binds the synchronous pull callback handing the engine
// the current editable content for a document. Called once per save
// attempt; must return promptly. Only one binding is allowed.
func (m *Multi) OnBufferRead(f func(index int) string) { m.onBufferRead.bind(f) }

// Request-side API. Every method is non-blocking and only enqueues.

// RequestNew asks for a new untitled document.
func (m *Multi) RequestNew() { m.send(Action{Kind: ActionNewRequest}) }

// RequestOpen asks to open the file at path.
func (m *Multi) RequestOpen(path string) {
	m.send(Action{Kind: ActionOpenRequest, Path: path, HasPath: true})
}

// RequestOpenRelative asks to open rel resolved against the sandbox
// prefix. Fails with an error notification when no prefix is set.
func (m *Multi) RequestOpenRelative(rel string) {
	m.send(Action{Kind: ActionOpenRelativeRequest, Path: rel, HasPath: true})
}

// RequestSave asks to save the selected document to its current path.
func (m *Multi) RequestSave() { m.send(Action{Kind: ActionSaveRequest}) }

// RequestSaveAs asks to save the selected document to path.
func (m *Multi) RequestSaveAs(path string) {
	m.send(Action{Kind: ActionSaveRequest, Path: path, HasPath: true})
}

// RequestClose asks to close the document at index. With force the
// close skips the dirty-confirmation round trip.
func (m *Multi) RequestClose(index int, force bool) {
	m.send(Action{Kind: ActionCloseRequest, Index: index, HasIndex: true, Force: force})
}

// RequestSelect moves the selection to index.
func (m *Multi) RequestSelect(index int) {
	m.send(Action{Kind: ActionSelect, Index: index, HasIndex: true})
}

// RequestDeselect clears the selection.
func (m *Multi) RequestDeselect() { m.send(Action{Kind: ActionSelect}) }

// SetPathPrefix sets the sandbox prefix; open/save targets outside it
// are rejected before any I/O.
func (m *Multi) SetPathPrefix(prefix string) {
	m.send(Action{Kind: ActionSetPrefix, Path: prefix, HasPath: true})
}

// ClearPathPrefix removes the sandbox prefix.
func (m *Multi) ClearPathPrefix() { m.send(Action{Kind: ActionSetPrefix}) }

// SetSaved reports a dirty-flag change for the document at index,
// typically wired to the editable buffer's change signal. Transitions
// are deduplicated: marking an already-dirty document dirty (or an
// already-clean one clean) fires no notification.
func (m *Multi) SetSaved(index int, saved bool) {
	m.send(Action{Kind: ActionSetSaved, Index: index, HasIndex: true, Saved: saved})
}

// RequestWindowClose asks the whole window to close, confirming the
// first dirty document if any.
func (m *Multi) RequestWindowClose() { m.send(Action{Kind: ActionWindowCloseRequest}) }

// AddFiles seeds the recent list, typically from a persisted snapshot
// at startup.
func (m *Multi) AddFiles(files []OpenedFile) {
	for _, f := range files {
		f := f
		m.send(Action{Kind: ActionAdd, File: &f})
	}
}

// FinalState returns the snapshot last handed off by a close or
// window-close request. Safe from any goroutine.
func (m *Multi) FinalState() FinalState {
	m.finalMu.Lock()
	defer m.finalMu.Unlock()
	return m.final.clone()
}

func (m *Multi) send(a Action) {
	a.Seq = m.clk.next()
	m.queue.enqueue(a)
}

// Run starts the consumer loop. Blocks until ctx is cancelled or Stop
// is called. Must be called from exactly one goroutine: all registry
// mutation and event-sink invocation happens here.
func (m *Multi) Run(ctx context.Context) error {
	slog.Info("archiver starting")

	for {
		a, ok := m.queue.tryDequeue()
		if ok {
			m.handle(a)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("archiver stopping: context cancelled")
			m.queue.close()
			return ctx.Err()

		case <-m.queue.wait():
			if m.queue.isClosed() && m.queue.len() == 0 {
				slog.Info("archiver stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the action queue, which makes Run return after the
// pending actions drain.
func (m *Multi) Stop() {
	m.queue.close()
}

// Drain processes actions until the queue is empty and no I/O worker
// is in flight. It runs on the caller's goroutine and is the
// deterministic driver used by tests and the scenario harness; do not
// mix it with a concurrent Run.
func (m *Multi) Drain() {
	for {
		if a, ok := m.queue.tryDequeue(); ok {
			m.handle(a)
			continue
		}
		if m.openWorker != nil {
			m.openWorker.join()
			m.openWorker = nil
			continue
		}
		if m.saveWorker != nil {
			m.saveWorker.join()
			m.saveWorker = nil
			continue
		}
		return
	}
}

// handle processes exactly one action, completing its mutation and
// notification side effects before the next dequeue.
func (m *Multi) handle(a Action) {
	slog.Debug("processing action", "kind", a.Kind.String(), "seq", a.Seq)

	switch a.Kind {

	case ActionNewRequest:
		if len(m.files) >= m.opts.MaxOpenFiles {
			m.send(Action{Kind: ActionOpenError, Message: "maximum number of files opened"})
			return
		}
		file := OpenedFile{
			ID:       m.opts.IDs.Generate(),
			Name:     nextUntitledName(m.files, m.opts.Extension),
			Saved:    true,
			OpenedAt: time.Now(),
			Index:    len(m.files),
		}
		m.files = append(m.files, file)
		m.onNew.emit(file)

	case ActionAdd:
		file := *a.File
		if file.Path != "" && containsPath(m.recent, file.Path) {
			return
		}
		m.recent = append(m.recent, file)
		m.onAdded.emit(file)

	case ActionOpenRelativeRequest:
		if m.prefix == "" {
			m.send(Action{Kind: ActionOpenError, Message: "no path prefix set"})
			return
		}
		abs := filepath.Join(m.prefix, a.Path)
		m.send(Action{Kind: ActionOpenRequest, Path: abs, HasPath: true})

	case ActionOpenRequest:
		if m.prefix != "" && !strings.HasPrefix(a.Path, m.prefix) {
			m.send(Action{Kind: ActionOpenError,
				Message: newSandboxError("cannot open file outside prefix "+m.prefix, a.Path).Message})
			return
		}
		for _, f := range m.files {
			if f.Path != "" && f.Path == a.Path {
				m.onReopen.emit(f)
				return
			}
		}
		if len(m.files) >= m.opts.MaxOpenFiles {
			m.send(Action{Kind: ActionOpenError, Message: "file list limit reached"})
			return
		}

		// If a second open arrives before the first open worker ends,
		// two workers would compute the same target index. Joining the
		// prior worker here is a deliberate, bounded stall that keeps
		// the indices consistent.
		m.openWorker.join()
		m.openWorker = spawnOpenWorker(m.queue, m.clk, a.Path, len(m.files), m.opts.MaxFileBytes)

	case ActionOpenSuccess:
		if len(m.files) >= m.opts.MaxOpenFiles {
			// The registry filled while the worker was reading.
			m.send(Action{Kind: ActionOpenError, Message: "file list limit reached"})
			return
		}
		file := *a.File
		file.ID = m.opts.IDs.Generate()
		file.Index = len(m.files)
		m.files = append(m.files, file)
		m.onOpened.emit(file)
		m.send(Action{Kind: ActionSetSaved, Index: file.Index, HasIndex: true, Saved: true})
		if file.Path != "" && !containsPath(m.recent, file.Path) {
			m.recent = append(m.recent, file)
		}

	case ActionCloseRequest:
		if a.Index < 0 || a.Index >= len(m.files) {
			slog.Error("invalid file index at close request", "index", a.Index)
			return
		}
		if a.Force || m.files[a.Index].Saved {
			var closed OpenedFile
			m.files, closed = removeAt(m.files, a.Index)
			m.lastClosed = &closed
			m.onClosed.emit(CloseEvent{File: closed, Remaining: len(m.files)})
			if a.Force && m.winClose {
				m.onWindowClose.emit(struct{}{})
				m.winClose = false
			}
		} else {
			m.onCloseConfirm.emit(m.files[a.Index])
		}
		m.refreshFinalState()

	case ActionSaveRequest:
		if m.selected < 0 {
			// The collaborator enabled a save action with nothing
			// selected; that contract violation is not recoverable.
			panic(&ArchiveError{Code: ErrCodeProtocol, Message: "save requested with no file selected"})
		}
		ix := m.selected
		target := a.Path
		if !a.HasPath {
			if m.files[ix].Path == "" {
				m.onSaveUnknownPath.emit(m.files[ix].Name)
				return
			}
			target = m.files[ix].Path
		}
		if m.prefix != "" && !strings.HasPrefix(target, m.prefix) {
			m.send(Action{Kind: ActionSaveError,
				Message: newSandboxError("cannot save file outside prefix "+m.prefix, target).Message})
			return
		}
		content := m.onBufferRead.call(ix)
		m.saveWorker.join()
		m.saveWorker = spawnSaveWorker(m.queue, m.clk, target, ix, content)

	case ActionSaveSuccess:
		if a.Index < 0 || a.Index >= len(m.files) {
			slog.Error("invalid file index after save success", "index", a.Index)
			return
		}
		if strings.HasPrefix(m.files[a.Index].Name, untitledPrefix) {
			m.files[a.Index].Name = a.Path
			m.files[a.Index].Path = a.Path
			m.onNameChanged.emit(RenameEvent{Index: a.Index, Name: a.Path})
			if !containsPath(m.recent, a.Path) {
				m.recent = append(m.recent, m.files[a.Index])
			}
		}
		m.send(Action{Kind: ActionSetSaved, Index: a.Index, HasIndex: true, Saved: true})

	case ActionSetSaved:
		if a.Index < 0 || a.Index >= len(m.files) {
			slog.Error("invalid file index at set saved", "index", a.Index)
			return
		}
		// A buffer clear after a close can emit a trailing SetSaved for
		// the removed slot; ignore it instead of touching whichever
		// file now occupies the index.
		if m.lastClosed != nil && m.lastClosed.Index == a.Index {
			m.lastClosed = nil
			return
		}
		if a.Saved {
			if !m.files[a.Index].Saved {
				m.files[a.Index].Saved = true
				m.onFilePersisted.emit(m.files[a.Index])
			}
		} else {
			if m.files[a.Index].Saved {
				m.files[a.Index].Saved = false
				m.onFileChanged.emit(m.files[a.Index])
			}
		}

	case ActionSelect:
		if a.HasIndex {
			if a.Index < 0 || a.Index >= len(m.files) {
				slog.Error("invalid file index at selection", "index", a.Index)
				return
			}
			m.selected = a.Index
			file := m.files[a.Index]
			m.onSelected.emit(&file)
		} else {
			m.selected = -1
			m.onSelected.emit(nil)
		}

	case ActionSetPrefix:
		if a.HasPath {
			m.prefix = a.Path
		} else {
			m.prefix = ""
		}

	case ActionWindowCloseRequest:
		dirty := -1
		for i, f := range m.files {
			if !f.Saved {
				dirty = i
				break
			}
		}
		if dirty >= 0 {
			m.onCloseConfirm.emit(m.files[dirty])
			m.winClose = true
		} else {
			m.onWindowClose.emit(struct{}{})
		}
		m.refreshFinalState()

	case ActionOpenError, ActionSaveError:
		m.onError.emit(a.Message)

	default:
		slog.Error("unknown action kind", "kind", int(a.Kind))
	}
}

// refreshFinalState snapshots the recent list and registry for the
// persistence collaborator.
func (m *Multi) refreshFinalState() {
	snap := FinalState{Recent: m.recent, Files: m.files}.clone()
	m.finalMu.Lock()
	m.final = snap
	m.finalMu.Unlock()
}

// String returns the action kind name for logging.
func (k ActionKind) String() string {
	switch k {
	case ActionNewRequest:
		return "new_request"
	case ActionOpenRequest:
		return "open_request"
	case ActionOpenRelativeRequest:
		return "open_relative_request"
	case ActionSaveRequest:
		return "save_request"
	case ActionCloseRequest:
		return "close_request"
	case ActionSelect:
		return "select"
	case ActionSetPrefix:
		return "set_prefix"
	case ActionWindowCloseRequest:
		return "window_close_request"
	case ActionAdd:
		return "add"
	case ActionOpenSuccess:
		return "open_success"
	case ActionOpenError:
		return "open_error"
	case ActionSaveSuccess:
		return "save_success"
	case ActionSaveError:
		return "save_error"
	case ActionSetSaved:
		return "set_saved"
	default:
		return "unknown"
	}
}
