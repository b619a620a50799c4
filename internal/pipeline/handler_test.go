package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clipscribe/backend/internal/media"
	"github.com/clipscribe/backend/internal/models"
)

func newTriggerRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/internal/process-video", h.ProcessVideo)
	return r
}

func postProcessVideo(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/internal/process-video", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProcessVideo_MissingFieldsIsClientError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing transcription_id", `{"video_url":"https://www.tiktok.com/@user/video/123"}`},
		{"missing video_url", `{"transcription_id":"` + uuid.New().String() + `"}`},
		{"empty body", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			p := New(
				&fakeFetcher{result: &media.FetchResult{AudioPath: "/tmp/ws/audio.mp3", Duration: 10}},
				&fakeTranscriber{text: "unused"}, store, nil, nil,
			)
			w := postProcessVideo(newTriggerRouter(NewHandler(p, nil)), tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if got := store.snapshot(); got.status != "" {
				t.Errorf("job record was mutated for a client error: status = %q", got.status)
			}
		})
	}
}

func TestProcessVideo_InvalidIDIsClientError(t *testing.T) {
	store := &fakeStore{}
	p := New(
		&fakeFetcher{result: &media.FetchResult{AudioPath: "/tmp/ws/audio.mp3", Duration: 10}},
		&fakeTranscriber{text: "unused"}, store, nil, nil,
	)
	body := `{"transcription_id":"not-a-uuid","video_url":"https://www.tiktok.com/@user/video/123"}`
	w := postProcessVideo(newTriggerRouter(NewHandler(p, nil)), body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if got := store.snapshot(); got.status != "" {
		t.Errorf("job record was mutated for a client error: status = %q", got.status)
	}
}

func TestProcessVideo_Success(t *testing.T) {
	store := &fakeStore{}
	p := New(
		&fakeFetcher{result: &media.FetchResult{AudioPath: "/tmp/ws/audio.mp3", Duration: 45.4}},
		&fakeTranscriber{text: "a short clip"}, store, nil, nil,
	)
	id := uuid.New()
	body := `{"transcription_id":"` + id.String() + `","video_url":"https://www.tiktok.com/@user/video/123"}`
	w := postProcessVideo(newTriggerRouter(NewHandler(p, nil)), body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success         bool      `json:"success"`
		TranscriptionID uuid.UUID `json:"transcription_id"`
		Transcript      string    `json:"transcript"`
		Duration        int       `json:"duration"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.TranscriptionID != id || resp.Transcript != "a short clip" || resp.Duration != 45 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestProcessVideo_FailureReportsDetails(t *testing.T) {
	store := &fakeStore{}
	p := New(
		&fakeFetcher{err: &media.ToolError{Stage: media.StageDownload, Err: context.DeadlineExceeded}},
		&fakeTranscriber{text: "unused"}, store, nil, nil,
	)
	body := `{"transcription_id":"` + uuid.New().String() + `","video_url":"https://www.tiktok.com/@user/video/123"}`
	w := postProcessVideo(newTriggerRouter(NewHandler(p, nil)), body)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "download") {
		t.Errorf("failure details should mention the download stage: %s", w.Body.String())
	}
	if got := store.snapshot(); got.status != models.StatusFailed {
		t.Errorf("status = %q, want failed", got.status)
	}
}

// A caller that fires the trigger and disconnects must not abort the run: the
// job row still reaches completed even though the response is never read.
func TestProcessVideo_SurvivesCallerDisconnect(t *testing.T) {
	store := &fakeStore{}
	p := New(
		&fakeFetcher{result: &media.FetchResult{AudioPath: "/tmp/ws/audio.mp3", Duration: 45}, delay: 100 * time.Millisecond},
		&fakeTranscriber{text: "finished after the caller went away"}, store, nil, nil,
	)
	r := newTriggerRouter(NewHandler(p, nil))

	body := `{"transcription_id":"` + uuid.New().String() + `","video_url":"https://www.tiktok.com/@user/video/123"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/process-video", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	// Simulate the disconnect while the fetch is still in flight.
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	got := store.snapshot()
	if got.status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed after caller disconnect", got.status)
	}
	if got.transcript == "" {
		t.Error("completed job must carry a transcript")
	}
}
