package archive

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FileState records why a close-confirmation was requested, so that
// once the user resolves it the correct follow-up fires: start a new
// document, show the open dialog, or close the window.
type FileState int

const (
	// StateNew: confirmation was triggered by a new-document request.
	StateNew FileState = iota
	// StateEditing: no follow-up pending.
	StateEditing
	// StateOpen: confirmation was triggered by a show-open request.
	StateOpen
	// StateCloseWindow: confirmation was triggered by a window close.
	StateCloseWindow
)

// CurrentFile is the single-document record.
//
// LastSaved == nil means unsaved changes exist; it doubles as the
// dirty flag. JustOpened suppresses the change notification that fires
// when a buffer's content is programmatically replaced after an open.
type CurrentFile struct {
	LastSaved  *time.Time
	Path       string
	JustOpened bool
}

// Reset clears the record to a fresh untitled document.
func (c *CurrentFile) Reset() {
	now := time.Now()
	c.Path = ""
	c.LastSaved = &now
	c.JustOpened = true
}

// PathOrUntitled returns the current path, or the untitled placeholder
// for the given extension.
func (c *CurrentFile) PathOrUntitled(ext string) string {
	if c.Path != "" {
		return c.Path
	}
	return untitledPrefix + "." + ext
}

type singleActionKind int

const (
	singleNewRequest singleActionKind = iota + 1
	singleSaveRequest
	singleSaveSuccess
	singleSaveError
	singleFileChanged
	singleOpenRequest
	singleOpenSuccess
	singleOpenError
	singleRequestShowOpen
	singleFileCloseRequest
	singleWindowCloseRequest
)

type singleAction struct {
	kind    singleActionKind
	seq     int64
	path    string
	hasPath bool
	content string
	force   bool
	message string
}

// OpenEvent is the payload of the single-engine opened notification.
type OpenEvent struct {
	Path    string
	Content string
}

// Single is the single-document archiver engine: exactly one active
// file, replaced wholesale on new/open. Same action-delivery substrate
// as Multi, cardinality one.
type Single struct {
	opts  Options
	queue *queue[singleAction]
	clk   *clock

	// Consumer-owned state.
	cur        CurrentFile
	state      FileState
	openWorker workerHandle
	saveWorker workerHandle

	onOpened          hooks[OpenEvent]
	onNew             hooks[struct{}]
	onShowOpen        hooks[struct{}]
	onSave            hooks[string]
	onSaveUnknownPath hooks[string]
	onCloseConfirm    hooks[string]
	onWindowClose     hooks[struct{}]
	onFileChanged     hooks[string]
	onError           hooks[string]
	onBufferRead      valuedHook[struct{}, string]
}

// NewSingle creates a single-document engine.
func NewSingle(opts Options) *Single {
	s := &Single{
		opts:  opts.withDefaults(),
		queue: newQueue[singleAction](),
		clk:   &clock{},
		state: StateNew,
	}
	s.cur.Reset()
	return s
}

// OnOpened fires when a background open completes. The callback may
// synchronously repopulate an editable buffer; the resulting change
// event is swallowed.
func (s *Single) OnOpened(f func(OpenEvent)) { s.onOpened.bind(f) }

// OnNew fires when the current document is replaced by a fresh one.
func (s *Single) OnNew(f func()) { s.onNew.bind(func(struct{}) { f() }) }

// OnShowOpen fires when the collaborator should present its open
// dialog.
func (s *Single) OnShowOpen(f func()) { s.onShowOpen.bind(func(struct{}) { f() }) }

// OnSave fires with the path of every successful save.
func (s *Single) OnSave(f func(path string)) { s.onSave.bind(f) }

// OnSaveUnknownPath fires when a save needs a target path.
func (s *Single) OnSaveUnknownPath(f func(string)) { s.onSaveUnknownPath.bind(f) }

// OnCloseConfirm fires with the display path of the dirty document
// that needs confirmation.
func (s *Single) OnCloseConfirm(f func(string)) { s.onCloseConfirm.bind(f) }

// OnWindowClose fires when the window may actually close.
func (s *Single) OnWindowClose(f func()) { s.onWindowClose.bind(func(struct{}) { f() }) }

// OnFileChanged fires when the document transitions clean to dirty;
// the argument is the current path, empty for untitled.
func (s *Single) OnFileChanged(f func(path string)) { s.onFileChanged.bind(f) }

// OnError fires with a human-readable message for every recovered
// failure.
func (s *Single) OnError(f func(string)) { s.onError.bind(f) }

// OnBufferRead binds the synchronous pull callback for the active
// document's content. Only one binding is allowed.
func (s *Single) OnBufferRead(f func() string) {
	s.onBufferRead.bind(func(struct{}) string { return f() })
}

// RequestNew asks to replace the current document with a fresh one.
// With force the dirty-confirmation round trip is skipped.
func (s *Single) RequestNew(force bool) {
	s.send(singleAction{kind: singleNewRequest, force: force})
}

// RequestSave asks to save to the current path.
func (s *Single) RequestSave() { s.send(singleAction{kind: singleSaveRequest}) }

// RequestSaveAs asks to save to path.
func (s *Single) RequestSaveAs(path string) {
	s.send(singleAction{kind: singleSaveRequest, path: path, hasPath: true})
}

// RequestShowOpen asks the collaborator to present its open dialog,
// confirming unsaved changes first.
func (s *Single) RequestShowOpen() { s.send(singleAction{kind: singleRequestShowOpen}) }

// RequestOpen asks to open the file at path.
func (s *Single) RequestOpen(path string) {
	s.send(singleAction{kind: singleOpenRequest, path: path, hasPath: true})
}

// NotifyChanged reports that the editable buffer changed. The first
// occurrence after an open is swallowed.
func (s *Single) NotifyChanged() { s.send(singleAction{kind: singleFileChanged}) }

// RequestFileClose reports that the user resolved a close confirmation
// by discarding the unsaved changes.
func (s *Single) RequestFileClose() { s.send(singleAction{kind: singleFileCloseRequest}) }

// RequestWindowClose asks the window to close, confirming unsaved
// changes first.
func (s *Single) RequestWindowClose() { s.send(singleAction{kind: singleWindowCloseRequest}) }

// Current returns the current-document record. Consumer-goroutine only.
func (s *Single) Current() CurrentFile { return s.cur }

func (s *Single) send(a singleAction) {
	a.seq = s.clk.next()
	s.queue.enqueue(a)
}

// Run starts the consumer loop. Must be called from exactly one
// goroutine.
func (s *Single) Run(ctx context.Context) error {
	slog.Info("archiver starting")

	for {
		a, ok := s.queue.tryDequeue()
		if ok {
			s.handle(a)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("archiver stopping: context cancelled")
			s.queue.close()
			return ctx.Err()

		case <-s.queue.wait():
			if s.queue.isClosed() && s.queue.len() == 0 {
				slog.Info("archiver stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the action queue, which makes Run return.
func (s *Single) Stop() { s.queue.close() }

// Drain processes actions until the queue is empty and no I/O worker
// is in flight. Deterministic driver for tests; do not mix with a
// concurrent Run.
func (s *Single) Drain() {
	for {
		if a, ok := s.queue.tryDequeue(); ok {
			s.handle(a)
			continue
		}
		if s.openWorker != nil {
			s.openWorker.join()
			s.openWorker = nil
			continue
		}
		if s.saveWorker != nil {
			s.saveWorker.join()
			s.saveWorker = nil
			continue
		}
		return
	}
}

func (s *Single) handle(a singleAction) {
	slog.Debug("processing action", "kind", int(a.kind), "seq", a.seq)

	switch a.kind {

	case singleNewRequest:
		if !a.force && s.cur.LastSaved == nil {
			s.state = StateNew
			s.onCloseConfirm.emit(s.cur.PathOrUntitled(s.opts.Extension))
			return
		}
		s.cur.Reset()
		s.onNew.emit(struct{}{})

	case singleSaveRequest:
		target := a.path
		if !a.hasPath {
			if s.cur.Path == "" {
				s.onSaveUnknownPath.emit(s.cur.PathOrUntitled(s.opts.Extension))
				return
			}
			target = s.cur.Path
		}
		content := s.onBufferRead.call(struct{}{})
		s.saveWorker.join()
		s.saveWorker = spawnSingleSaveWorker(s.queue, s.clk, target, content)

	case singleSaveSuccess:
		now := time.Now()
		s.cur.Path = a.path
		s.cur.LastSaved = &now
		s.onSave.emit(a.path)

	case singleFileChanged:
		// A programmatic buffer load right after an open must not be
		// flagged as a user edit.
		if s.cur.JustOpened {
			s.cur.JustOpened = false
			return
		}
		if s.cur.LastSaved != nil {
			s.cur.LastSaved = nil
			s.onFileChanged.emit(s.cur.Path)
		}

	case singleRequestShowOpen:
		if s.cur.LastSaved != nil {
			s.onShowOpen.emit(struct{}{})
		} else {
			s.state = StateOpen
			s.onCloseConfirm.emit(s.cur.PathOrUntitled(s.opts.Extension))
		}

	case singleOpenRequest:
		if s.cur.Path != "" && s.cur.Path == a.path {
			return
		}
		s.openWorker.join()
		s.openWorker = spawnSingleOpenWorker(s.queue, s.clk, a.path, s.opts.MaxFileBytes)

	case singleOpenSuccess:
		// JustOpened must be set before the notification: the callback
		// may synchronously repopulate the buffer, and that change
		// event has to be swallowed.
		now := time.Now()
		s.cur.JustOpened = true
		s.cur.Path = a.path
		s.cur.LastSaved = &now
		s.onOpened.emit(OpenEvent{Path: a.path, Content: a.content})

	case singleFileCloseRequest:
		s.cur.Reset()
		switch s.state {
		case StateNew:
			s.onNew.emit(struct{}{})
			s.cur.JustOpened = true
		case StateOpen:
			s.onShowOpen.emit(struct{}{})
			s.cur.JustOpened = true
		case StateCloseWindow:
			s.onWindowClose.emit(struct{}{})
		case StateEditing:
		}

	case singleWindowCloseRequest:
		if s.cur.LastSaved == nil {
			s.state = StateCloseWindow
			s.onCloseConfirm.emit(s.cur.PathOrUntitled(s.opts.Extension))
		} else {
			s.onWindowClose.emit(struct{}{})
		}

	case singleOpenError, singleSaveError:
		s.onError.emit(a.message)

	default:
		slog.Error("unknown action kind", "kind", int(a.kind))
	}
}

// spawnSingleOpenWorker reads path on a fresh goroutine and enqueues
// the result.
func spawnSingleOpenWorker(q *queue[singleAction], clk *clock, path string, maxBytes int) workerHandle {
	done := make(workerHandle)
	go func() {
		defer close(done)

		if !filepath.IsAbs(path) {
			postSingle(q, clk, singleAction{kind: singleOpenError, message: "using non-absolute path"})
			return
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			postSingle(q, clk, singleAction{kind: singleOpenError, message: err.Error()})
			return
		}
		content, err := decodeText(raw)
		if err != nil {
			postSingle(q, clk, singleAction{kind: singleOpenError, message: err.Error()})
			return
		}
		if len(content) > maxBytes {
			postSingle(q, clk, singleAction{kind: singleOpenError, message: "file extrapolates maximum size"})
			return
		}
		postSingle(q, clk, singleAction{kind: singleOpenSuccess, path: path, hasPath: true, content: content})
	}()
	return done
}

// spawnSingleSaveWorker writes content to path on a fresh goroutine
// and enqueues the result.
func spawnSingleSaveWorker(q *queue[singleAction], clk *clock, path, content string) workerHandle {
	done := make(workerHandle)
	go func() {
		defer close(done)

		if msg, ok := checkSaveTarget(path); !ok {
			postSingle(q, clk, singleAction{kind: singleSaveError, message: msg})
			return
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			postSingle(q, clk, singleAction{kind: singleSaveError, message: err.Error()})
			return
		}
		postSingle(q, clk, singleAction{kind: singleSaveSuccess, path: path, hasPath: true})
	}()
	return done
}

func postSingle(q *queue[singleAction], clk *clock, a singleAction) {
	a.seq = clk.next()
	q.enqueue(a)
}
