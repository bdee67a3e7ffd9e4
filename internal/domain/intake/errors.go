package intake

import (
	"errors"
	"fmt"
)

var (
	ErrMissingArtifact  = errors.New("a prescription file is required")
	ErrInvalidField     = errors.New("invalid field")
	ErrArtifactTooLarge = errors.New("prescription file is too large")
	ErrUploadFailed     = errors.New("could not upload the prescription file")
	ErrPersistFailed    = errors.New("could not save the submission")
	ErrSubmitInProgress = errors.New("a submission is already in progress")
	ErrUnexpected       = errors.New("unexpected error")

	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrStatusConflict is returned by UpdateStatus when the row is no
	// longer in the expected status.
	ErrStatusConflict = errors.New("submission status changed concurrently")
)

// FieldError names the form field that failed validation. It matches
// ErrInvalidField with errors.Is.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidField
}

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
