package store

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition reports an illegal notification status
	// change (anything other than pending -> delivered/cancelled).
	ErrInvalidTransition = errors.New("invalid notification status transition")

	// ErrNotificationNotFound reports an unknown notification id.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrDuplicateNotification reports an id that already exists for
	// any user. Ids are unique store-wide.
	ErrDuplicateNotification = errors.New("duplicate notification id")

	// ErrEntityNotFound reports an unknown tracked entity id.
	ErrEntityNotFound = errors.New("tracked entity not found")
)

// CorruptSnapshotError reports a snapshot that failed structural
// validation on load. It triggers the backup restoration cascade.
type CorruptSnapshotError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptSnapshotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt snapshot %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt snapshot %s: %s", e.Path, e.Reason)
}

func (e *CorruptSnapshotError) Unwrap() error { return e.Err }
