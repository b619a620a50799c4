package transcriber

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type stubAPI struct {
	text   string
	err    error
	calls  int
	gotReq openai.AudioRequest
}

func (s *stubAPI) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	s.calls++
	s.gotReq = req
	if s.err != nil {
		return openai.AudioResponse{}, s.err
	}
	return openai.AudioResponse{Text: s.text}, nil
}

func audioFixture(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp(t.TempDir(), "transcription-")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(path, []byte("audio-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribe_Success(t *testing.T) {
	api := &stubAPI{text: "hello from a short video"}
	tr := newWithAPI(api, "en", nil)
	audioPath := audioFixture(t)

	text, err := tr.Transcribe(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello from a short video" {
		t.Errorf("transcript = %q", text)
	}
	if api.gotReq.Model != openai.Whisper1 || api.gotReq.Language != "en" {
		t.Errorf("unexpected request: %+v", api.gotReq)
	}
	if api.gotReq.Format != openai.AudioResponseFormatText {
		t.Errorf("expected plain-text format, got %q", api.gotReq.Format)
	}
	if _, err := os.Stat(filepath.Dir(audioPath)); !errors.Is(err, os.ErrNotExist) {
		t.Error("workspace should be deleted after success")
	}
}

func TestTranscribe_MissingFileFailsFast(t *testing.T) {
	api := &stubAPI{text: "unused"}
	tr := newWithAPI(api, "en", nil)

	_, err := tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope", "audio.mp3"))
	if !errors.Is(err, ErrAudioNotFound) {
		t.Fatalf("expected ErrAudioNotFound, got %v", err)
	}
	if api.calls != 0 {
		t.Error("engine must not be called when the audio file is missing")
	}
}

func TestTranscribe_EmptyFileFailsFast(t *testing.T) {
	api := &stubAPI{}
	tr := newWithAPI(api, "en", nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := tr.Transcribe(context.Background(), path)
	if !errors.Is(err, ErrAudioNotFound) {
		t.Fatalf("expected ErrAudioNotFound, got %v", err)
	}
	if api.calls != 0 {
		t.Error("engine must not be called for an empty audio file")
	}
}

func TestTranscribe_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		engineErr error
		want      error
	}{
		{
			name:      "auth failure",
			engineErr: &openai.APIError{HTTPStatusCode: 401, Message: "invalid api key"},
			want:      ErrInvalidCredentials,
		},
		{
			name:      "rate limited",
			engineErr: &openai.APIError{HTTPStatusCode: 429, Message: "rate limit exceeded"},
			want:      ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &stubAPI{err: tt.engineErr}
			tr := newWithAPI(api, "en", nil)
			audioPath := audioFixture(t)

			_, err := tr.Transcribe(context.Background(), audioPath)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if _, statErr := os.Stat(filepath.Dir(audioPath)); !errors.Is(statErr, os.ErrNotExist) {
				t.Error("workspace should be deleted after engine failure")
			}
		})
	}
}

func TestTranscribe_GenericEngineFailure(t *testing.T) {
	api := &stubAPI{err: errors.New("connection reset")}
	tr := newWithAPI(api, "en", nil)
	audioPath := audioFixture(t)

	_, err := tr.Transcribe(context.Background(), audioPath)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrRateLimited) {
		t.Errorf("generic failure wrongly classified: %v", err)
	}
	if _, statErr := os.Stat(filepath.Dir(audioPath)); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("workspace should be deleted after generic failure")
	}
}
