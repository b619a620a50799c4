package models

import (
	"time"

	"github.com/google/uuid"
)

// Transcription status lifecycle. A row is created in processing and moves
// exactly once to completed or failed; both are terminal.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusProcessing: true,
	},
	StatusProcessing: {
		StatusProcessing: true, // idempotent mark at pipeline start
		StatusCompleted:  true,
		StatusFailed:     true,
	},
	StatusCompleted: {},
	StatusFailed:    {},
}

// IsKnownStatus reports whether status is a valid transcription status.
func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// IsTerminalStatus reports whether the pipeline will never transition out of status.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// CanTransition reports whether a status transition is allowed. The empty
// string stands for "no row yet": processing is the only valid initial state.
func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Transcription is one user-initiated request to transcribe a single video URL.
// Transcript, Title, AudioURL and DurationSeconds are set only when the
// pipeline completes; AudioURL additionally requires the S3 audio archive to
// be configured.
type Transcription struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	VideoURL        string    `json:"video_url"`
	Platform        string    `json:"platform"`
	Title           string    `json:"title,omitempty"`
	Transcript      string    `json:"transcript,omitempty"`
	AudioURL        string    `json:"audio_url,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	Status          string    `json:"status"`
	Tags            []string  `json:"tags,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
