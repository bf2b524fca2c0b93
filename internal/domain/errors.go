package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrCorrupt                = errors.New("corrupt record")
	ErrAlreadyExists          = errors.New("already exists")
	ErrRemoteUnavailable      = errors.New("remote unavailable")
	ErrPartialMaterialization = errors.New("partial materialization")
	ErrInvalidInput           = errors.New("invalid input")
	ErrLocalPathConflict      = errors.New("local path already set")
)

// Continuation is the policy applied after a classified failure
type Continuation string

const (
	// ContinueDegraded produces a partial_success session
	ContinueDegraded Continuation = "continue_degraded"
	// Abort produces a failed outcome with nothing persisted
	Abort Continuation = "abort"
	// RetryableExternal surfaces to the caller without persisting; the caller may resubmit
	RetryableExternal Continuation = "retryable_external"
)

// SubmitError is returned when a submission cannot produce a session
type SubmitError struct {
	Report       ErrorReport
	Continuation Continuation
	Err          error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit failed (%s/%s): %s: %v", e.Report.Stage, e.Report.Kind, e.Report.Message, e.Err)
	}
	return fmt.Sprintf("submit failed (%s/%s): %s", e.Report.Stage, e.Report.Kind, e.Report.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Retryable reports whether resubmitting the same request may succeed
func (e *SubmitError) Retryable() bool {
	return e.Continuation == RetryableExternal
}

// FrameFetchError is returned when a frame could not be fetched from the remote service.
// It always matches ErrRemoteUnavailable.
type FrameFetchError struct {
	SessionID string
	FrameID   string
	Report    ErrorReport
	Err       error
}

func (e *FrameFetchError) Error() string {
	return fmt.Sprintf("fetch frame %s/%s (%s): %v", e.SessionID, e.FrameID, e.Report.Kind, e.Err)
}

func (e *FrameFetchError) Unwrap() []error {
	return []error{ErrRemoteUnavailable, e.Err}
}

// PartialMaterializationError names the frames that could not be materialized
type PartialMaterializationError struct {
	SessionID string
	Failed    []FrameFailure
}

func (e *PartialMaterializationError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.FrameID)
	}
	return fmt.Sprintf("session %s: %d frame(s) not materialized: %s", e.SessionID, len(ids), strings.Join(ids, ", "))
}

func (e *PartialMaterializationError) Unwrap() error { return ErrPartialMaterialization }

// FailedFrameIDs returns the ids of the frames that failed, in order
func (e *PartialMaterializationError) FailedFrameIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.FrameID)
	}
	return ids
}
