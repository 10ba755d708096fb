package domain

import "time"

// Job status constants
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// IsTerminalStatus reports whether a status admits no further transitions.
func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// Job is one end-to-end request to turn an input video into output clips.
//
// Results is non-empty only when Status is COMPLETED, ErrorMessage is
// non-empty only when Status is FAILED, and CompletedAt is set exactly when
// the status is terminal. InputRef holds the reference as submitted (local
// path or URL) and is rewritten once, to the resolved local path, after the
// download stage.
type Job struct {
	JobID           string        `db:"job_id"`
	Status          string        `db:"status"`
	ProgressMessage string        `db:"progress_message"`
	InputRef        string        `db:"input_ref"`
	Results         ClipArtifacts `db:"results"`
	ErrorMessage    string        `db:"error_message"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
	CompletedAt     *time.Time    `db:"completed_at"`
}

// ClipArtifact is one successfully produced output clip file plus its
// metadata. Immutable once created; removed only when the owning job's
// artifacts are deleted.
type ClipArtifact struct {
	Filename    string  `json:"filename"`
	StoragePath string  `json:"storage_path"`
	StartOffset float64 `json:"start_offset"`
	EndOffset   float64 `json:"end_offset"`
	Duration    float64 `json:"duration"`
}

// Segment is a detected candidate clip boundary. It only exists within a
// single pipeline run and is never persisted.
type Segment struct {
	StartOffset float64
	EndOffset   float64
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndOffset - s.StartOffset
}

// Sentence is one time-aligned transcript unit.
type Sentence struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the output of the transcription stage and the input to
// segment detection. The pipeline treats it as opaque beyond the sentence
// count used for progress reporting.
type Transcript struct {
	Language  string     `json:"language"`
	Sentences []Sentence `json:"sentences"`
}
