package subdoc

import (
	"errors"
	"fmt"

	"github.com/jward/subdoc/internal/finder"
	"github.com/jward/subdoc/internal/tracker"
)

var (
	// ErrRegionNotFound is returned by Open when no region encloses the cursor.
	ErrRegionNotFound = errors.New("subdoc: no region at cursor")

	// ErrUntrackable reports a host edit that straddles a region boundary.
	ErrUntrackable = tracker.ErrUntrackable

	// ErrSyncFailed reports a sync edit that the host failed or rejected.
	ErrSyncFailed = errors.New("subdoc: sync failed")

	// ErrBusy is returned by Open while another Open is in progress.
	ErrBusy = errors.New("subdoc: open already in progress")

	// ErrCancelled is returned when the user dismisses the language picker.
	ErrCancelled = errors.New("subdoc: cancelled")

	// ErrClosed is returned for operations on a disposed link or engine.
	ErrClosed = errors.New("subdoc: closed")
)

// InvalidPatternError reports a malformed user-supplied region rule.
type InvalidPatternError = finder.InvalidPatternError

// HostOperationError wraps a failed host call made while activating a link.
type HostOperationError struct {
	Op  string
	Err error
}

func (e *HostOperationError) Error() string {
	return fmt.Sprintf("subdoc: host %s: %v", e.Op, e.Err)
}

func (e *HostOperationError) Unwrap() error { return e.Err }
