package services

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSubmission marks the distinct "conflict" kind: another
	// non-terminal submission already exists for the same (name, rev).
	ErrDuplicateSubmission = errors.New("a submission for this name and revision is already in progress")

	// ErrAlreadyPosted rejects a second posting attempt for a submission.
	ErrAlreadyPosted = errors.New("submission has already been posted")

	ErrSubmissionCancelled = errors.New("submission has been cancelled")
	ErrBallotExists        = errors.New("document already has an open ballot")
	ErrNoOpenBallot        = errors.New("document has no open ballot")
	ErrDiscussNeedsText    = errors.New("a discuss position requires non-empty discuss text")
	ErrNoApprovalDecision  = errors.New("no approval writeup with a decision exists for this document")
)

// InvalidTransitionError rejects a state change not present in the current
// state's next-state graph. No mutation happens and no event is written.
type InvalidTransitionError struct {
	Kind string // "submission", "draft", "draft-iesg"
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %q to %q", e.Kind, e.From, e.To)
}

// ValidationError carries structured per-file or per-field detail back to
// the submitter so rejections can be corrected without guessing.
type ValidationError struct {
	Problems []FieldError
}

// FieldError names the file or field a rule rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", e.Problems[0].Field, e.Problems[0].Message)
	}
	return fmt.Sprintf("submission rejected with %d problems", len(e.Problems))
}

// Add appends one problem and returns the error for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: message})
	return e
}

// HasProblems reports whether any rule rejected the input.
func (e *ValidationError) HasProblems() bool {
	return len(e.Problems) > 0
}

// RelocationError wraps a file-relocation failure after retries were
// exhausted.
type RelocationError struct {
	Attempts int
	Err      error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("file relocation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RelocationError) Unwrap() error {
	return e.Err
}
