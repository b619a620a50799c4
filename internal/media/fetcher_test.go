package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Stub tool scripts: yt-dlp writes the file named by -o, ffmpeg writes its
// last argument, ffprobe prints a canned duration depending on whether it is
// probing the video or the audio artifact.

const ytDlpOK = `out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
printf 'video-bytes' > "$out"
`

func ffmpegOK(marker string) string {
	return `for a in "$@"; do last="$a"; done
printf 'audio-bytes' > "$last"
touch "` + marker + `"
`
}

func ffprobeWith(videoDur, audioDur string) string {
	return `case "$2" in
  *video.mp4) echo "` + videoDur + `" ;;
  *) echo "` + audioDur + `" ;;
esac
`
}

type fetcherEnv struct {
	fetcher      *Fetcher
	workDir      string
	toolDir      string
	ffmpegMarker string
}

func newFetcherEnv(t *testing.T, ytDlpBody, ffprobeBody string, ffmpegBody string) *fetcherEnv {
	t.Helper()
	toolDir := t.TempDir()
	marker := filepath.Join(toolDir, "ffmpeg-ran")
	if ffmpegBody == "" {
		ffmpegBody = ffmpegOK(marker)
	}
	ytDlp := writeScript(t, toolDir, "yt-dlp", ytDlpBody)
	ffmpeg := writeScript(t, toolDir, "ffmpeg", ffmpegBody)
	ffprobe := writeScript(t, toolDir, "ffprobe", ffprobeBody)

	workDir := t.TempDir()
	locator := NewLocator(ytDlp, ffmpeg, ffprobe, nil)
	fetcher := NewFetcher(locator, Config{
		MaxVideoDuration: 180 * time.Second,
		WorkDir:          workDir,
		DownloadTimeout:  10 * time.Second,
		ProbeTimeout:     10 * time.Second,
		ExtractTimeout:   10 * time.Second,
	}, nil)
	return &fetcherEnv{fetcher: fetcher, workDir: workDir, toolDir: toolDir, ffmpegMarker: marker}
}

func (e *fetcherEnv) workspaceCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	return len(entries)
}

func TestFetch_Success(t *testing.T) {
	env := newFetcherEnv(t, ytDlpOK, ffprobeWith("45.2", "45.6"), "")

	result, err := env.fetcher.Fetch(context.Background(), "https://www.tiktok.com/@user/video/123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Duration != 45.6 {
		t.Errorf("duration = %v, want audio-side probe 45.6", result.Duration)
	}
	if _, err := os.Stat(result.AudioPath); err != nil {
		t.Errorf("audio artifact missing: %v", err)
	}
	videoPath := filepath.Join(filepath.Dir(result.AudioPath), "video.mp4")
	if _, err := os.Stat(videoPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("intermediate video should be deleted, stat err = %v", err)
	}
	// The workspace outlives a successful fetch; the transcriber owns cleanup.
	if got := env.workspaceCount(t); got != 1 {
		t.Errorf("workspace count = %d, want 1", got)
	}
}

func TestFetch_AcceptsDurationAtCeiling(t *testing.T) {
	env := newFetcherEnv(t, ytDlpOK, ffprobeWith("180.0", "180.0"), "")

	if _, err := env.fetcher.Fetch(context.Background(), "https://www.tiktok.com/@user/video/123"); err != nil {
		t.Fatalf("expected 180.0s video to be admitted, got %v", err)
	}
}

func TestFetch_RejectsOverlongVideoBeforeExtraction(t *testing.T) {
	env := newFetcherEnv(t, ytDlpOK, ffprobeWith("200.5", "200.5"), "")

	_, err := env.fetcher.Fetch(context.Background(), "https://www.youtube.com/shorts/abc")
	var durErr *DurationExceededError
	if !errors.As(err, &durErr) {
		t.Fatalf("expected DurationExceededError, got %v", err)
	}
	if durErr.Duration != 200.5 || durErr.Limit != 180 {
		t.Errorf("unexpected error detail: %+v", durErr)
	}
	if _, statErr := os.Stat(env.ffmpegMarker); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("extraction ran for a rejected video")
	}
	if got := env.workspaceCount(t); got != 0 {
		t.Errorf("workspace not cleaned up after rejection: %d dirs remain", got)
	}
}

func TestFetch_DownloadFailure(t *testing.T) {
	env := newFetcherEnv(t, "echo 'ERROR: unsupported url' >&2\nexit 1\n", ffprobeWith("45", "45"), "")

	_, err := env.fetcher.Fetch(context.Background(), "https://www.tiktok.com/@user/video/123")
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.Stage != StageDownload {
		t.Errorf("stage = %q, want %q", toolErr.Stage, StageDownload)
	}
	if !strings.Contains(err.Error(), "download") {
		t.Errorf("error detail should mention the download stage: %v", err)
	}
	if !strings.Contains(toolErr.Output, "unsupported url") {
		t.Errorf("tool output not captured: %q", toolErr.Output)
	}
	if got := env.workspaceCount(t); got != 0 {
		t.Errorf("workspace not cleaned up after download failure: %d dirs remain", got)
	}
}

func TestFetch_DownloadProducesNoFile(t *testing.T) {
	env := newFetcherEnv(t, "exit 0\n", ffprobeWith("45", "45"), "")

	_, err := env.fetcher.Fetch(context.Background(), "https://www.tiktok.com/@user/video/123")
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Stage != StageDownload {
		t.Fatalf("expected download-stage ToolError, got %v", err)
	}
	if got := env.workspaceCount(t); got != 0 {
		t.Errorf("workspace not cleaned up: %d dirs remain", got)
	}
}

func TestFetch_ProbeParseFailure(t *testing.T) {
	env := newFetcherEnv(t, ytDlpOK, "echo not-a-number\n", "")

	_, err := env.fetcher.Fetch(context.Background(), "https://www.tiktok.com/@user/video/123")
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Stage != StageProbe {
		t.Fatalf("expected probe-stage ToolError, got %v", err)
	}
	if got := env.workspaceCount(t); got != 0 {
		t.Errorf("workspace not cleaned up: %d dirs remain", got)
	}
}

func TestFetch_ExtractionFailure(t *testing.T) {
	env := newFetcherEnv(t, ytDlpOK, ffprobeWith("45", "45"), "exit 1\n")

	_, err := env.fetcher.Fetch(context.Background(), "https://www.tiktok.com/@user/video/123")
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Stage != StageExtract {
		t.Fatalf("expected extract-stage ToolError, got %v", err)
	}
	if got := env.workspaceCount(t); got != 0 {
		t.Errorf("workspace not cleaned up: %d dirs remain", got)
	}
}

func TestFetch_ToolUnavailable(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	locator := NewLocator("", "", "", nil)
	if _, err := locator.Resolve(context.Background()); err == nil {
		t.Skip("yt-dlp installed at a fixed system location on this machine")
	}

	fetcher := NewFetcher(locator, Config{WorkDir: t.TempDir()}, nil)
	_, err := fetcher.Fetch(context.Background(), "https://www.tiktok.com/@user/video/123")
	if !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
}

func TestLimitedBuffer_BoundsCapture(t *testing.T) {
	var b limitedBuffer
	b.max = 10
	n, err := b.Write([]byte(strings.Repeat("x", 100)))
	if err != nil || n != 100 {
		t.Fatalf("Write = (%d, %v), want (100, nil)", n, err)
	}
	if len(b.String()) != 10 {
		t.Errorf("kept %d bytes, want 10", len(b.String()))
	}
}
