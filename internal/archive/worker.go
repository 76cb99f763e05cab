package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// workerHandle is the join point of a background I/O worker. The
// worker closes it after enqueuing its single result action, so a
// receive on the channel is a bounded wait for one disk operation.
type workerHandle chan struct{}

// join blocks until the worker has enqueued its result. Nil handles
// (no worker in flight) return immediately.
func (h workerHandle) join() {
	if h != nil {
		<-h
	}
}

// decodeText decodes raw file bytes to text. UTF-16 content with a BOM
// is transcoded; everything else passes through as UTF-8.
func decodeText(raw []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// spawnOpenWorker reads the file at path on a fresh goroutine and
// enqueues OpenSuccess or OpenError. index is the registry position
// the file is expected to land at; the consumer re-checks it on
// delivery.
func spawnOpenWorker(q *queue[Action], clk *clock, path string, index int, maxBytes int) workerHandle {
	done := make(workerHandle)
	go func() {
		defer close(done)

		if !filepath.IsAbs(path) {
			post(q, clk, Action{Kind: ActionOpenError, Message: "using non-absolute path"})
			return
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			post(q, clk, Action{Kind: ActionOpenError, Message: err.Error()})
			return
		}

		content, err := decodeText(raw)
		if err != nil {
			post(q, clk, Action{Kind: ActionOpenError, Message: fmt.Sprintf("decode %s: %v", path, err)})
			return
		}

		if len(content) > maxBytes {
			post(q, clk, Action{Kind: ActionOpenError, Message: "file extrapolates maximum size"})
			return
		}

		file := &OpenedFile{
			Name:     path,
			Path:     path,
			Content:  content,
			Saved:    true,
			OpenedAt: time.Now(),
			Index:    index,
		}
		post(q, clk, Action{Kind: ActionOpenSuccess, File: file})
	}()
	return done
}

// spawnSaveWorker writes content to path on a fresh goroutine and
// enqueues SaveSuccess or SaveError.
func spawnSaveWorker(q *queue[Action], clk *clock, path string, index int, content string) workerHandle {
	done := make(workerHandle)
	go func() {
		defer close(done)

		if msg, ok := checkSaveTarget(path); !ok {
			post(q, clk, Action{Kind: ActionSaveError, Message: msg})
			return
		}

		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			post(q, clk, Action{Kind: ActionSaveError, Message: err.Error()})
			return
		}
		post(q, clk, Action{Kind: ActionSaveSuccess, Index: index, Path: path, HasPath: true})
	}()
	return done
}

// checkSaveTarget rejects non-absolute paths and directory targets
// before any write is attempted.
func checkSaveTarget(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		return "using non-absolute path", false
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "tried to save file to directory path", false
	}
	return "", true
}

// post stamps and enqueues an action, ignoring a closed queue (the
// engine is shutting down and the result has nowhere to go).
func post(q *queue[Action], clk *clock, a Action) {
	a.Seq = clk.next()
	q.enqueue(a)
}
