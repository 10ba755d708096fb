package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInputNotFound is returned when a local input path does not exist
	ErrInputNotFound = errors.New("input file not found")

	// ErrInvalidReference is returned when an input reference is neither an
	// http(s) URL nor a plain filesystem path
	ErrInvalidReference = errors.New("invalid input reference")

	// ErrDownloadFailed is returned on network or protocol errors while
	// fetching a remote input
	ErrDownloadFailed = errors.New("download failed")

	// ErrPayloadTooLarge is returned when a remote input exceeds the
	// configured size limit
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrPreconditionFailed is returned when a stage input fails validation
	// before the underlying service is invoked
	ErrPreconditionFailed = errors.New("stage precondition failed")

	// ErrNoSegmentsDetected is returned when segment detection yields an
	// empty sequence
	ErrNoSegmentsDetected = errors.New("no clips detected")

	// ErrAllTrimsFailed is returned when every per-segment trim attempt fails
	ErrAllTrimsFailed = errors.New("failed to generate any clips")

	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a mutation targets a job whose
	// current status does not admit it, e.g. a job already terminal
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrIndexOutOfRange is returned when an artifact index is outside the
	// job's artifact count
	ErrIndexOutOfRange = errors.New("artifact index out of range")

	// ErrArtifactMissing is returned when an artifact listed on the job
	// record is absent from disk
	ErrArtifactMissing = errors.New("artifact file missing")
)

// StageError wraps a failure raised by one of the black-box pipeline
// services, preserving the stage name and the original cause for operator
// diagnostics.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Err.Error())
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new stage error
func NewStageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
