// Package transcriber streams extracted audio to the OpenAI Whisper API and
// maps engine failures to typed errors. It also owns the final cleanup of the
// per-run workspace: whatever the outcome, the audio file and its containing
// directory are gone by the time Transcribe returns.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrAudioNotFound means the audio file is missing or empty; no engine
	// call was attempted.
	ErrAudioNotFound = errors.New("audio file not found")
	// ErrInvalidCredentials means the engine rejected our API key.
	ErrInvalidCredentials = errors.New("invalid transcription credentials")
	// ErrRateLimited means the engine throttled the request. Callers may
	// resubmit later; this package does not retry.
	ErrRateLimited = errors.New("transcription rate limited")
)

// audioAPI is the slice of the OpenAI client the transcriber uses.
type audioAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Config holds transcription engine settings.
type Config struct {
	APIKey   string
	Language string // language hint, e.g. "en"
}

// Transcriber invokes the speech-to-text engine.
type Transcriber struct {
	api      audioAPI
	language string
	logger   *zap.Logger
}

// New creates a transcriber backed by the OpenAI API.
func New(cfg Config, logger *zap.Logger) *Transcriber {
	return newWithAPI(openai.NewClient(cfg.APIKey), cfg.Language, logger)
}

func newWithAPI(api audioAPI, language string, logger *zap.Logger) *Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "en"
	}
	return &Transcriber{api: api, language: language, logger: logger}
}

// Transcribe submits the audio file to Whisper and returns the plain-text
// transcript. The audio file and its workspace directory are deleted on every
// outcome; cleanup failures are logged and never mask the primary result.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	defer t.cleanup(audioPath)

	info, err := os.Stat(audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrAudioNotFound, audioPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrAudioNotFound, audioPath)
	}
	t.logger.Debug("submitting audio for transcription",
		zap.String("path", audioPath),
		zap.Int64("size_bytes", info.Size()))

	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Language: t.language,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", mapEngineError(err)
	}

	t.logger.Info("transcription complete", zap.Int("chars", len(resp.Text)))
	return resp.Text, nil
}

// cleanup removes the audio file and its containing workspace directory.
func (t *Transcriber) cleanup(audioPath string) {
	if err := os.Remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("audio cleanup failed", zap.String("path", audioPath), zap.Error(err))
	}
	dir := filepath.Dir(audioPath)
	if err := os.RemoveAll(dir); err != nil {
		t.logger.Warn("workspace cleanup failed", zap.String("dir", dir), zap.Error(err))
	}
}

// mapEngineError converts engine failures into the package's error taxonomy.
func mapEngineError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401:
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		case 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	return fmt.Errorf("transcription failed: %w", err)
}
