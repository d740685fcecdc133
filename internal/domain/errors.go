package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no run or post matches a filter.
	ErrNotFound = errors.New("record not found")

	// ErrStaleStatus is returned when a conditional update finds the run in a
	// different status than the caller expected.
	ErrStaleStatus = errors.New("run status changed concurrently")

	// ErrActiveRunExists is returned when an insert would create a second active run.
	ErrActiveRunExists = errors.New("an active workflow run already exists")

	// ErrRunBusy is returned when another attempt holds the lease on a run.
	ErrRunBusy = errors.New("workflow run is leased by another attempt")

	// ErrSlugTaken is returned when a post insert collides on slug.
	ErrSlugTaken = errors.New("slug already taken")

	// ErrPostExists is returned when a run already has a post.
	ErrPostExists = errors.New("post already exists for run")
)

// Action-link failure reasons. They are safe to show to the link holder.
const (
	ReasonMissingParams = "missing-params"
	ReasonMissingTopic  = "missing-topic"
	ReasonInvalidTopic  = "invalid-topic"
	ReasonUnknownAction = "unknown-action"
	ReasonInvalidToken  = "invalid-token"
	ReasonInvalidState  = "invalid-state"
	ReasonInternal      = "internal-error"
)

// ActionError reports a rejected email action. Run state is untouched.
type ActionError struct {
	Reason string
	Detail string
}

func (e *ActionError) Error() string {
	if e.Detail == "" {
		return "action rejected: " + e.Reason
	}
	return fmt.Sprintf("action rejected: %s: %s", e.Reason, e.Detail)
}

// NewActionError builds an ActionError with a formatted detail.
func NewActionError(reason, format string, args ...any) *ActionError {
	return &ActionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the public reason from err, defaulting to ReasonInternal.
func ReasonOf(err error) string {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Reason
	}
	return ReasonInternal
}

// StepError wraps an external-dependency failure with the step and run it hit.
type StepError struct {
	Step  string
	RunID string
	Err   error
}

func (e *StepError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("%s step: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s step (run %s): %v", e.Step, e.RunID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
