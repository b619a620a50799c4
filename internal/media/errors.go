package media

import (
	"errors"
	"fmt"
)

// Pipeline stages for tool failures.
const (
	StageDownload = "download"
	StageProbe    = "probe"
	StageExtract  = "extract"
)

// ErrToolUnavailable is returned when no usable yt-dlp binary could be resolved.
var ErrToolUnavailable = errors.New("download tool unavailable")

// ToolError is a fatal failure of an external tool invocation: non-zero exit,
// timeout, or missing expected output. Output holds a bounded capture of the
// tool's combined output for logs.
type ToolError struct {
	Stage  string
	Err    error
	Output string
}

func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Stage, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// DurationExceededError is an admission rejection: the probed video duration
// is over the configured ceiling. It is raised before audio extraction.
type DurationExceededError struct {
	Duration float64 // probed video duration in seconds
	Limit    float64 // admission ceiling in seconds
}

func (e *DurationExceededError) Error() string {
	return fmt.Sprintf("video duration %.1fs exceeds the %.0fs limit", e.Duration, e.Limit)
}
