package notify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a mutation names an id the store has
	// never loaded.
	ErrNotFound = errors.New("notification not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("notification store closed")
)

// Op names a store mutation.
type Op string

const (
	OpMarkRead    Op = "mark_read"
	OpMarkUnread  Op = "mark_unread"
	OpArchive     Op = "archive"
	OpMarkAllRead Op = "mark_all_read"
)

// FetchError wraps a failed Load. The previously loaded records stay
// available when it is returned.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching notifications: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationError reports a mutation the server rejected. By the time it is
// returned the optimistic local change has already been rolled back.
type MutationError struct {
	Op  Op
	IDs []string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, strings.Join(e.IDs, ","), e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// ScopeViolationError means a caller tried to act on a record outside the
// store's scope. It indicates a programming error in the caller.
type ScopeViolationError struct {
	ID string
}

func (e *ScopeViolationError) Error() string {
	return fmt.Sprintf("notification %s is outside the session scope", e.ID)
}

// IsFetchError reports whether err (or any error in its chain) is a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsMutationError reports whether err (or any error in its chain) is a
// MutationError.
func IsMutationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}

// IsScopeViolation reports whether err (or any error in its chain) is a
// ScopeViolationError.
func IsScopeViolation(err error) bool {
	var se *ScopeViolationError
	return errors.As(err, &se)
}
