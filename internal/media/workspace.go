package media

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	videoFileName = "video.mp4"
	audioFileName = "audio.mp3"
)

// Workspace is a per-run temporary directory holding at most one video file
// and one audio file. It is owned exclusively by the pipeline run that created
// it and must be removed on every exit path.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a uniquely named workspace directory under baseDir
// (os.TempDir() when empty). The name combines a millisecond timestamp with a
// random suffix so concurrent runs never collide.
func NewWorkspace(baseDir string) (*Workspace, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	dir, err := os.MkdirTemp(baseDir, fmt.Sprintf("transcription-%d-", time.Now().UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// VideoPath is the fixed location of the downloaded video inside the workspace.
func (w *Workspace) VideoPath() string { return filepath.Join(w.Dir, videoFileName) }

// AudioPath is the fixed location of the extracted audio inside the workspace.
func (w *Workspace) AudioPath() string { return filepath.Join(w.Dir, audioFileName) }

// Remove deletes the workspace directory and everything in it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Dir)
}
