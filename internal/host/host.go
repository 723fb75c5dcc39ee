// Package host defines the editor platform the sync engine runs against.
package host

import (
	"context"

	"github.com/jward/subdoc/internal/text"
)

// DocumentID identifies a document for as long as the host keeps it open.
type DocumentID string

// Snapshot is a consistent view of one document.
type Snapshot struct {
	ID       DocumentID
	Name     string
	Language string
	Text     string
	Version  int
}

// OpenSpec describes a document to open. A non-empty Name returns the
// already open document with that name, if any.
type OpenSpec struct {
	Language string
	Name     string
}

// ShowOptions controls where and how a document is shown.
type ShowOptions struct {
	// Beside places the editor next to the active one instead of in it.
	Beside bool

	// PreserveFocus keeps focus on the currently active editor.
	PreserveFocus bool
}

// Edit replaces Range with Text. Version is the document version the edit
// was computed against; hosts reject edits against a stale version.
type Edit struct {
	Range   text.Range
	Text    string
	Version int
}

// Change is one replacement reported by a change event, in the coordinates
// of the document before the change.
type Change struct {
	Range text.Range
	Text  string
}

// ChangeEvent reports edits applied to a document. Version is the document
// version after all Changes were applied.
type ChangeEvent struct {
	Document DocumentID
	Version  int
	Changes  []Change
}

// Level is the severity of a user-visible message.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Subscription releases an event listener.
type Subscription interface {
	Dispose()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Dispose() { f() }

// Host is the editor platform: documents, editors, events and prompts.
//
// Change and close listeners may be invoked synchronously from inside Edit
// or CloseDocument, but never while the host holds internal locks, so a
// listener may call back into the host.
//
// Change events for one document are delivered in version order, one event
// per version. The engine tears a link down when a host document's events
// skip a version.
//
// Changes use the document's own line breaks: an edit never splits a "\r\n"
// pair or joins a "\r" and a "\n" into one. Hosts reject such edits.
type Host interface {
	Snapshot(doc DocumentID) (Snapshot, error)
	OpenDocument(ctx context.Context, spec OpenSpec) (DocumentID, error)
	ShowDocument(ctx context.Context, doc DocumentID, opts ShowOptions) error
	Edit(ctx context.Context, doc DocumentID, edit Edit) (bool, error)
	CloseDocument(ctx context.Context, doc DocumentID) error
	SaveDocument(ctx context.Context, doc DocumentID) error

	OnDidChangeDocument(fn func(ChangeEvent)) Subscription
	OnDidCloseDocument(fn func(DocumentID)) Subscription

	Languages(ctx context.Context) ([]string, error)
	Pick(ctx context.Context, options []string, placeholder string) (string, bool, error)
	ShowMessage(ctx context.Context, level Level, message string) error

	// ActiveEditor returns the focused document and its cursor.
	ActiveEditor() (DocumentID, text.Position, bool)
	SetCursor(ctx context.Context, doc DocumentID, pos text.Position) error
	RevealLine(ctx context.Context, doc DocumentID, line int) error
}
