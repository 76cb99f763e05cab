package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// untitledPrefix is the display-name prefix of documents that have not
// been persisted yet. A save of such a document is a save-as-new: the
// document is renamed to its target path.
const untitledPrefix = "Untitled"

// OpenedFile is one entry of the multi-document registry.
type OpenedFile struct {
	// ID is a unique, time-sortable identifier assigned at creation.
	ID string `json:"id"`

	// Name is the display name. Starts as "Untitled N.<ext>" until the
	// first successful save, then equals Path.
	Name string `json:"name"`

	// Path is the absolute filesystem path; empty until persisted.
	Path string `json:"path,omitempty"`

	// Content holds the file bytes decoded as text. Populated on a
	// successful open; not required to stay populated.
	Content string `json:"content,omitempty"`

	// Saved is true iff there are no edits since the last successful
	// persist.
	Saved bool `json:"saved"`

	// OpenedAt is the creation/open time (zero when unknown).
	OpenedAt time.Time `json:"opened_at,omitzero"`

	// Index is the entry's current position in the registry. Equals the
	// entry's slice offset at all times.
	Index int `json:"index"`
}

// FinalState is the snapshot handed to the persistence collaborator at
// shutdown or close-request time.
//
// Recent accumulates every file ever added, opened, or saved
// (deduplicated by path), independent of current open/closed status.
// Files is the registry as of the snapshot.
type FinalState struct {
	Recent []OpenedFile `json:"recent"`
	Files  []OpenedFile `json:"files"`
}

// clone returns a deep-enough copy (OpenedFile has no reference fields).
func (s FinalState) clone() FinalState {
	out := FinalState{
		Recent: make([]OpenedFile, len(s.Recent)),
		Files:  make([]OpenedFile, len(s.Files)),
	}
	copy(out.Recent, s.Recent)
	copy(out.Files, s.Files)
	return out
}

// nextUntitledName scans existing untitled display names for the
// highest N and returns "Untitled N+1.<ext>".
func nextUntitledName(files []OpenedFile, ext string) string {
	highest := 0
	suffix := "." + ext
	for _, f := range files {
		rest, ok := strings.CutPrefix(f.Name, untitledPrefix+" ")
		if !ok {
			continue
		}
		rest = strings.TrimSuffix(rest, suffix)
		if n, err := strconv.Atoi(rest); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s %d.%s", untitledPrefix, highest+1, ext)
}

// removeAt removes the entry at position ix and decrements the index
// of every entry after it, keeping index == slice offset for all
// remaining entries. The removed entry is returned with its old index.
func removeAt(files []OpenedFile, ix int) ([]OpenedFile, OpenedFile) {
	removed := files[ix]
	for i := ix + 1; i < len(files); i++ {
		files[i].Index--
	}
	files = append(files[:ix], files[ix+1:]...)
	return files, removed
}

// containsPath reports whether any file in the list has the given path.
func containsPath(files []OpenedFile, path string) bool {
	for _, f := range files {
		if f.Path != "" && f.Path == path {
			return true
		}
	}
	return false
}
