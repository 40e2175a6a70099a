package roster

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEnrolled means the user has no enrollment in the target school.
	ErrNotEnrolled = errors.New("user is not enrolled in this school")
	// ErrNotGranted means the course is not granted to the school.
	ErrNotGranted = errors.New("course is not granted to this school")
)

// ValidationError reports empty or invalid input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotApprovedError reports an enrollment that exists but still needs
// approval. Carries
// the student identity so the caller can render a confirmation.
type NotApprovedError struct {
	StudentID int64
	FullName  string
}

func (e *NotApprovedError) Error() string {
	return fmt.Sprintf("student %d (%s) is not approved yet", e.StudentID, e.FullName)
}
