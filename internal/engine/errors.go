package engine

import (
	"errors"
	"fmt"
)

// Sides name where a conflicting object lives, for error messages.
const (
	SideProject  = "project"
	SideTimeline = "timeline"
)

// ErrorCode categorizes synchronization failures.
type ErrorCode string

const (
	// ErrCodeAmbiguousTitle indicates two objects of the same kind share a
	// title on one side. Titles are the cross-system identity, so this is
	// never silently merged.
	ErrCodeAmbiguousTitle ErrorCode = "AMBIGUOUS_TITLE"
)

// SyncError is a synchronization failure. The whole operation aborts on
// the first one; nothing is written.
type SyncError struct {
	Code    ErrorCode
	Message string
	Side    string
	Title   string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsAmbiguityError reports whether err is a duplicate-title rejection.
// Uses errors.As to handle wrapped errors.
func IsAmbiguityError(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == ErrCodeAmbiguousTitle
	}
	return false
}

func newAmbiguityError(side, kind, title string) *SyncError {
	return &SyncError{
		Code:    ErrCodeAmbiguousTitle,
		Message: fmt.Sprintf("ambiguous %s %s title %q", side, kind, title),
		Side:    side,
		Title:   title,
	}
}
