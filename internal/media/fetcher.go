// Package media downloads a remote short-form video into a scoped temporary
// workspace, enforces the duration admission ceiling, and extracts a
// normalized mono MP3 for transcription. yt-dlp, ffprobe and ffmpeg are
// treated as black-box executables.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxToolOutput bounds how much tool output is kept per invocation; yt-dlp in
// particular is verbose and the capture must not grow with video size.
const maxToolOutput = 8 * 1024

// Config holds fetcher settings.
type Config struct {
	MaxVideoDuration time.Duration // admission ceiling; 0 disables the check
	WorkDir          string        // base dir for workspaces; empty = os.TempDir()
	DownloadTimeout  time.Duration
	ProbeTimeout     time.Duration
	ExtractTimeout   time.Duration
}

// FetchResult is the output contract of a successful fetch: a normalized
// audio file inside a still-live workspace, and its measured duration. The
// audio duration is re-probed from the extracted file and is the value that
// gets persisted; the video-side probe only feeds the admission check.
type FetchResult struct {
	AudioPath string
	Duration  float64 // seconds, from the audio artifact
}

// Fetcher downloads videos and extracts audio using externally resolved tools.
type Fetcher struct {
	locator *Locator
	cfg     Config
	logger  *zap.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(locator *Locator, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 5 * time.Minute
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 2 * time.Minute
	}
	return &Fetcher{locator: locator, cfg: cfg, logger: logger}
}

// Fetch downloads the video at url, checks its duration against the admission
// ceiling, extracts mono 16kHz 128kbps MP3 audio, deletes the intermediate
// video, and returns the audio path with its re-probed duration. On any
// failure the workspace is removed before the error propagates; on success
// the caller (the transcriber) owns workspace cleanup.
func (f *Fetcher) Fetch(ctx context.Context, url string) (result *FetchResult, err error) {
	tools, err := f.locator.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(f.cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rmErr := ws.Remove(); rmErr != nil {
				f.logger.Warn("workspace cleanup failed", zap.String("dir", ws.Dir), zap.Error(rmErr))
			}
		}
	}()
	f.logger.Debug("workspace created", zap.String("dir", ws.Dir), zap.String("url", url))

	if err = f.download(ctx, tools.YtDlp, url, ws.VideoPath()); err != nil {
		return nil, err
	}

	videoDuration, err := f.probeDuration(ctx, tools.FFprobe, ws.VideoPath())
	if err != nil {
		return nil, err
	}
	if f.cfg.MaxVideoDuration > 0 && videoDuration > f.cfg.MaxVideoDuration.Seconds() {
		return nil, &DurationExceededError{Duration: videoDuration, Limit: f.cfg.MaxVideoDuration.Seconds()}
	}

	if err = f.extractAudio(ctx, tools.FFmpeg, ws.VideoPath(), ws.AudioPath()); err != nil {
		return nil, err
	}

	// Keep only the audio artifact; the video already served its purpose.
	if rmErr := os.Remove(ws.VideoPath()); rmErr != nil {
		f.logger.Warn("failed to remove intermediate video", zap.Error(rmErr))
	}

	audioDuration, err := f.probeDuration(ctx, tools.FFprobe, ws.AudioPath())
	if err != nil {
		return nil, err
	}

	f.logger.Info("media fetched",
		zap.String("audio", ws.AudioPath()),
		zap.Float64("duration_sec", audioDuration))
	return &FetchResult{AudioPath: ws.AudioPath(), Duration: audioDuration}, nil
}

func (f *Fetcher) download(ctx context.Context, ytDlp, url, outPath string) error {
	_, err := f.runTool(ctx, f.cfg.DownloadTimeout, StageDownload,
		ytDlp, "-f", "best", "-o", outPath, url)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(outPath); statErr != nil {
		return &ToolError{Stage: StageDownload, Err: fmt.Errorf("video file missing after download: %w", statErr)}
	}
	return nil
}

// probeDuration asks ffprobe for the container duration as a float number of seconds.
func (f *Fetcher) probeDuration(ctx context.Context, ffprobe, path string) (float64, error) {
	out, err := f.runTool(ctx, f.cfg.ProbeTimeout, StageProbe,
		ffprobe, "-i", path, "-show_entries", "format=duration", "-v", "quiet", "-of", "csv=p=0")
	if err != nil {
		return 0, err
	}
	duration, parseErr := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if parseErr != nil {
		return 0, &ToolError{Stage: StageProbe, Err: fmt.Errorf("parse duration %q: %w", strings.TrimSpace(out), parseErr)}
	}
	return duration, nil
}

func (f *Fetcher) extractAudio(ctx context.Context, ffmpeg, videoPath, audioPath string) error {
	_, err := f.runTool(ctx, f.cfg.ExtractTimeout, StageExtract,
		ffmpeg, "-i", videoPath, "-vn", "-ar", "16000", "-ac", "1", "-b:a", "128k", "-y", audioPath)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(audioPath); statErr != nil {
		return &ToolError{Stage: StageExtract, Err: fmt.Errorf("audio file missing after extraction: %w", statErr)}
	}
	return nil
}

// runTool executes one external tool invocation with a stage timeout and a
// bounded capture of stdout+stderr. Stdout is returned for parsing; the
// capture goes into the ToolError on failure.
func (f *Fetcher) runTool(ctx context.Context, timeout time.Duration, stage string, name string, args ...string) (string, error) {
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(toolCtx, name, args...)
	var stdout, stderr limitedBuffer
	stdout.max = maxToolOutput
	stderr.max = maxToolOutput
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if toolCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s", timeout)
		}
		return "", &ToolError{
			Stage:  stage,
			Err:    err,
			Output: strings.TrimSpace(stderr.String() + stdout.String()),
		}
	}
	return stdout.String(), nil
}

// limitedBuffer keeps the first max bytes written and drops the rest.
type limitedBuffer struct {
	buf []byte
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if remain := b.max - len(b.buf); remain > 0 {
		if len(p) > remain {
			b.buf = append(b.buf, p[:remain]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return string(b.buf) }
