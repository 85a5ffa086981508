package checkin

import (
	"errors"
	"fmt"
	"time"
)

// ErrSubjectNotFound is returned when a scanned id has no directory entry.
var ErrSubjectNotFound = errors.New("subject not found")

// AlreadyCheckedInError reports a duplicate within the active window and
// scope. It is informational, not a fault: the subject is already in.
type AlreadyCheckedInError struct {
	SubjectID string
	Scope     string
	At        time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("subject %s already checked in at %s", e.SubjectID, e.At.Format(time.RFC3339))
}

// ValidationError reports a rejected request before any store call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// StoreError wraps a record store failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
