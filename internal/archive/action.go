package archive

// ActionKind distinguishes the requests and results flowing through
// the multi-document engine's queue.
type ActionKind int

const (
	// Requests, produced by the request-side API.

	// ActionNewRequest creates a new untitled document.
	ActionNewRequest ActionKind = iota + 1
	// ActionOpenRequest opens the file at Path.
	ActionOpenRequest
	// ActionOpenRelativeRequest resolves Path against the sandbox
	// prefix and re-enters as an open request.
	ActionOpenRelativeRequest
	// ActionSaveRequest saves the selected document (to Path if HasPath).
	ActionSaveRequest
	// ActionCloseRequest closes the document at Index.
	ActionCloseRequest
	// ActionSelect updates the current selection (clears it if !HasIndex).
	ActionSelect
	// ActionSetPrefix replaces the sandbox prefix (clears it if !HasPath).
	ActionSetPrefix
	// ActionWindowCloseRequest asks the whole window to close.
	ActionWindowCloseRequest
	// ActionAdd appends File to the recent list without opening it.
	ActionAdd

	// Results, produced by I/O workers or by the consumer re-posting
	// to itself.

	// ActionOpenSuccess carries a freshly read File.
	ActionOpenSuccess
	// ActionOpenError carries the failure Message of an open.
	ActionOpenError
	// ActionSaveSuccess reports Index was written to Path.
	ActionSaveSuccess
	// ActionSaveError carries the failure Message of a save.
	ActionSaveError
	// ActionSetSaved marks the document at Index saved or dirty.
	ActionSetSaved
)

// Action is one tagged value of the multi-document queue. Kind selects
// which of the remaining fields are meaningful.
type Action struct {
	Kind ActionKind

	// Seq is the logical-clock stamp assigned at enqueue time.
	Seq int64

	// Path is the target path for open/save/prefix actions. HasPath
	// distinguishes "no path" from an empty path for the optional
	// cases (save, prefix).
	Path    string
	HasPath bool

	// Index references a registry slot. HasIndex distinguishes "no
	// selection" for ActionSelect.
	Index    int
	HasIndex bool

	// Force marks a close request that skips confirmation.
	Force bool

	// Saved is the new dirty flag for ActionSetSaved.
	Saved bool

	// Message is the human-readable error text of result errors.
	Message string

	// File is the payload of ActionOpenSuccess and ActionAdd.
	File *OpenedFile
}
