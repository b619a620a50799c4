// Package pipeline orchestrates one transcription job end to end: mark the
// row processing, fetch and extract media, invoke the speech-to-text engine,
// and move the row to its terminal state. Failures in any stage end the job
// as failed; status writes on the failure path are best-effort and never mask
// the stage error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipscribe/backend/internal/media"
	"github.com/clipscribe/backend/pkg/storage"
)

// ErrAlreadyRunning means a pipeline execution for this job id is in flight;
// a given id is processed at most once at a time.
var ErrAlreadyRunning = errors.New("transcription is already being processed")

// titleRuneLimit is how much of the transcript becomes the auto-derived title.
const titleRuneLimit = 50

// Fetcher downloads a video and extracts its audio track.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*media.FetchResult, error)
}

// Transcriber converts an audio file into text and cleans up the workspace.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Store is the job record store the pipeline writes through.
type Store interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, transcript, title string, durationSeconds int, audioURL string) error
}

// AudioArchiver stores extracted audio artifacts; *storage.S3 implements it.
type AudioArchiver interface {
	UploadAudio(ctx context.Context, key string, body io.Reader, contentLength int64) (string, error)
}

// Result is the synchronous outcome of a pipeline run.
type Result struct {
	TranscriptionID uuid.UUID `json:"transcription_id"`
	Transcript      string    `json:"transcript"`
	DurationSeconds int       `json:"duration"`
}

// Pipeline runs transcription jobs.
type Pipeline struct {
	fetcher     Fetcher
	transcriber Transcriber
	store       Store
	archive     AudioArchiver // optional; nil disables audio archiving
	logger      *zap.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// New creates a pipeline. archive may be nil.
func New(fetcher Fetcher, transcriber Transcriber, store Store, archive AudioArchiver, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:     fetcher,
		transcriber: transcriber,
		store:       store,
		archive:     archive,
		logger:      logger,
		inflight:    make(map[uuid.UUID]struct{}),
	}
}

// Run executes the job: processing -> completed or failed. It returns the
// transcript and rounded duration on success, or the stage error that ended
// the job. The job row reaches its terminal state before Run returns, whether
// or not the caller reads the result.
func (p *Pipeline) Run(ctx context.Context, id uuid.UUID, videoURL string) (*Result, error) {
	if !p.begin(id) {
		return nil, ErrAlreadyRunning
	}
	defer p.end(id)

	log := p.logger.With(zap.String("transcription_id", id.String()))
	log.Info("pipeline started", zap.String("video_url", videoURL))

	// Idempotent when the row was created in processing; a write failure here
	// is a persistence error, logged and swallowed.
	if err := p.store.MarkProcessing(ctx, id); err != nil {
		log.Warn("mark processing failed", zap.Error(err))
	}

	fetched, err := p.fetcher.Fetch(ctx, videoURL)
	if err != nil {
		log.Error("media fetch failed", zap.Error(err))
		p.markFailed(ctx, id, log)
		return nil, err
	}

	audioURL := ""
	if p.archive != nil {
		audioURL = p.archiveAudio(ctx, id, fetched.AudioPath, log)
	}

	transcript, err := p.transcriber.Transcribe(ctx, fetched.AudioPath)
	if err != nil {
		log.Error("transcription failed", zap.Error(err))
		p.markFailed(ctx, id, log)
		return nil, err
	}

	title := DeriveTitle(transcript)
	durationSeconds := int(math.Round(fetched.Duration))
	if err := p.store.Complete(ctx, id, transcript, title, durationSeconds, audioURL); err != nil {
		log.Error("persist result failed", zap.Error(err))
		p.markFailed(ctx, id, log)
		return nil, fmt.Errorf("persist result: %w", err)
	}

	log.Info("pipeline completed", zap.Int("duration_sec", durationSeconds), zap.Int("transcript_chars", len(transcript)))
	return &Result{TranscriptionID: id, Transcript: transcript, DurationSeconds: durationSeconds}, nil
}

// markFailed moves the job to failed. The write is best-effort: a failure is
// logged and the original stage error stays what the caller sees.
func (p *Pipeline) markFailed(ctx context.Context, id uuid.UUID, log *zap.Logger) {
	if err := p.store.MarkFailed(ctx, id); err != nil {
		log.Error("mark failed write failed", zap.Error(err))
	}
}

// archiveAudio uploads the extracted audio to the archive. Best-effort: the
// artifact reference is reserved data, never worth failing the job over.
func (p *Pipeline) archiveAudio(ctx context.Context, id uuid.UUID, audioPath string, log *zap.Logger) string {
	f, err := os.Open(audioPath)
	if err != nil {
		log.Warn("audio archive skipped", zap.Error(err))
		return ""
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		log.Warn("audio archive skipped", zap.Error(err))
		return ""
	}
	url, err := p.archive.UploadAudio(ctx, storage.AudioKey(id.String()), f, info.Size())
	if err != nil {
		log.Warn("audio archive upload failed", zap.Error(err))
		return ""
	}
	log.Debug("audio artifact archived", zap.String("url", url))
	return url
}

func (p *Pipeline) begin(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, running := p.inflight[id]; running {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *Pipeline) end(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, id)
}

// DeriveTitle builds a display title from the first 50 characters of the
// transcript, trimmed, with an ellipsis marker appended.
func DeriveTitle(transcript string) string {
	runes := []rune(transcript)
	if len(runes) > titleRuneLimit {
		runes = runes[:titleRuneLimit]
	}
	return strings.TrimSpace(string(runes)) + "..."
}
