package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const probeTimeout = 5 * time.Second

// ToolSet holds resolved paths for the external tools the fetcher invokes.
type ToolSet struct {
	YtDlp   string
	FFmpeg  string
	FFprobe string
}

// Locator resolves the external tool binaries once and caches the result for
// the process. Deployment environments vary in where yt-dlp lives, so each
// candidate is verified with a version probe before being selected.
type Locator struct {
	ytDlpOverride   string
	ffmpegOverride  string
	ffprobeOverride string
	logger          *zap.Logger

	mu       sync.Mutex
	resolved *ToolSet
}

// NewLocator creates a locator. Non-empty override paths skip probing for the
// corresponding tool.
func NewLocator(ytDlpPath, ffmpegPath, ffprobePath string, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{
		ytDlpOverride:   ytDlpPath,
		ffmpegOverride:  ffmpegPath,
		ffprobeOverride: ffprobePath,
		logger:          logger,
	}
}

// ytDlpCandidates returns the ordered locations to try: the bare command name
// via PATH first, then known fixed install locations.
func ytDlpCandidates() []string {
	candidates := []string{"yt-dlp", "/usr/local/bin/yt-dlp", "/opt/homebrew/bin/yt-dlp", "/usr/bin/yt-dlp"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".local", "bin", "yt-dlp"),
			filepath.Join(home, "Library", "Python", "3.9", "bin", "yt-dlp"),
		)
	}
	return candidates
}

// Resolve returns the cached tool set, probing candidates on first use.
// It fails with ErrToolUnavailable when no yt-dlp candidate responds to a
// version probe, or when ffmpeg/ffprobe are missing from PATH.
func (l *Locator) Resolve(ctx context.Context) (*ToolSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved != nil {
		return l.resolved, nil
	}

	ytDlp := l.ytDlpOverride
	if ytDlp == "" {
		for _, candidate := range ytDlpCandidates() {
			if l.probeVersion(ctx, candidate) {
				ytDlp = candidate
				break
			}
		}
	}
	if ytDlp == "" {
		return nil, fmt.Errorf("%w: no yt-dlp candidate responded to a version probe", ErrToolUnavailable)
	}

	ffmpeg, err := l.lookTool(l.ffmpegOverride, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := l.lookTool(l.ffprobeOverride, "ffprobe")
	if err != nil {
		return nil, err
	}

	l.resolved = &ToolSet{YtDlp: ytDlp, FFmpeg: ffmpeg, FFprobe: ffprobe}
	l.logger.Info("media tools resolved",
		zap.String("yt_dlp", ytDlp),
		zap.String("ffmpeg", ffmpeg),
		zap.String("ffprobe", ffprobe))
	return l.resolved, nil
}

func (l *Locator) lookTool(override, name string) (string, error) {
	if override != "" {
		return override, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found on PATH", ErrToolUnavailable, name)
	}
	return path, nil
}

func (l *Locator) probeVersion(ctx context.Context, candidate string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := exec.CommandContext(probeCtx, candidate, "--version").Run(); err != nil {
		l.logger.Debug("yt-dlp candidate probe failed", zap.String("candidate", candidate), zap.Error(err))
		return false
	}
	return true
}
