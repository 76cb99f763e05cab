package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/casefile/casefile/internal/archive"
)

// rootPlaceholder replaces the scenario root in recorded paths so that
// traces are comparable across runs with different temp directories.
const rootPlaceholder = "$ROOT"

// TraceEvent is one recorded event-sink notification. Index and
// Remaining use pointers so that a present zero is distinguishable
// from an absent field.
type TraceEvent struct {
	Event     string `json:"event"`
	Name      string `json:"name,omitempty"`
	Path      string `json:"path,omitempty"`
	Index     *int   `json:"index,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Result holds the trace of one scenario execution.
type Result struct {
	Trace []TraceEvent
}

// Run executes a scenario against a fresh Multi engine. Fixture files
// are written into root; relative step paths resolve against it. Each
// step is followed by a Drain, so notifications appear in the trace in
// a deterministic order.
func Run(scenario *Scenario, root string) (*Result, error) {
	for _, f := range scenario.Fixtures {
		path := filepath.Join(root, f.Name)
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return nil, fmt.Errorf("write fixture %s: %w", f.Name, err)
		}
	}

	m := archive.NewMulti(archive.Options{
		Extension:    scenario.Config.Extension,
		MaxOpenFiles: scenario.Config.MaxOpenFiles,
		MaxFileBytes: scenario.Config.MaxFileBytes,
		IDs:          archive.NewFixedGenerator("doc"),
	})

	result := &Result{Trace: []TraceEvent{}}
	rec := &recorder{result: result, root: root}
	rec.subscribe(m)

	m.OnBufferRead(func(int) string { return scenario.Buffer })

	if scenario.Config.Sandbox {
		m.SetPathPrefix(root)
		m.Drain()
	}

	for i, step := range scenario.Steps {
		if err := applyStep(m, step, root); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		m.Drain()
	}

	return result, nil
}

func applyStep(m *archive.Multi, step Step, root string) error {
	switch step.Op {
	case OpNew:
		m.RequestNew()
	case OpOpen:
		m.RequestOpen(resolvePath(step.Path, root))
	case OpOpenRelative:
		m.RequestOpenRelative(step.Path)
	case OpSave:
		if step.Path != "" {
			m.RequestSaveAs(resolvePath(step.Path, root))
		} else {
			m.RequestSave()
		}
	case OpClose:
		m.RequestClose(step.Index, step.Force)
	case OpSelect:
		m.RequestSelect(step.Index)
	case OpDeselect:
		m.RequestDeselect()
	case OpSetSaved:
		m.SetSaved(step.Index, step.Saved)
	case OpSetPrefix:
		m.SetPathPrefix(resolvePath(step.Path, root))
	case OpClearPrefix:
		m.ClearPathPrefix()
	case OpWindowClose:
		m.RequestWindowClose()
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func resolvePath(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// recorder turns event-sink notifications into trace events with
// relativized paths.
type recorder struct {
	result *Result
	root   string
}

func (r *recorder) subscribe(m *archive.Multi) {
	m.OnNew(func(f archive.OpenedFile) { r.addFile("new", f) })
	m.OnReopen(func(f archive.OpenedFile) { r.addFile("reopen", f) })
	m.OnAdded(func(f archive.OpenedFile) { r.addFile("added", f) })
	m.OnOpened(func(f archive.OpenedFile) { r.addFile("opened", f) })
	m.OnSelected(func(f *archive.OpenedFile) {
		if f == nil {
			r.add(TraceEvent{Event: "deselected"})
			return
		}
		ix := f.Index
		r.add(TraceEvent{Event: "selected", Name: r.rel(f.Name), Index: &ix})
	})
	m.OnClosed(func(e archive.CloseEvent) {
		remaining := e.Remaining
		r.add(TraceEvent{Event: "closed", Name: r.rel(e.File.Name), Remaining: &remaining})
	})
	m.OnCloseConfirm(func(f archive.OpenedFile) { r.addFile("close_confirm", f) })
	m.OnFileChanged(func(f archive.OpenedFile) { r.addFile("changed", f) })
	m.OnFilePersisted(func(f archive.OpenedFile) { r.addFile("persisted", f) })
	m.OnNameChanged(func(e archive.RenameEvent) {
		ix := e.Index
		r.add(TraceEvent{Event: "renamed", Name: r.rel(e.Name), Index: &ix})
	})
	m.OnSaveUnknownPath(func(name string) {
		r.add(TraceEvent{Event: "save_unknown_path", Name: r.rel(name)})
	})
	m.OnWindowClose(func() { r.add(TraceEvent{Event: "window_close"}) })
	m.OnError(func(msg string) {
		r.add(TraceEvent{Event: "error", Message: r.rel(msg)})
	})
}

func (r *recorder) addFile(event string, f archive.OpenedFile) {
	ix := f.Index
	r.add(TraceEvent{
		Event: event,
		Name:  r.rel(f.Name),
		Path:  r.rel(f.Path),
		Index: &ix,
	})
}

func (r *recorder) add(e TraceEvent) {
	r.result.Trace = append(r.result.Trace, e)
}

// rel replaces the scenario root with a stable placeholder.
func (r *recorder) rel(s string) string {
	return strings.ReplaceAll(s, r.root, rootPlaceholder)
}
