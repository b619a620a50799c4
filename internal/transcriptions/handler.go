package transcriptions

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipscribe/backend/internal/middleware"
	"github.com/clipscribe/backend/internal/models"
	"github.com/clipscribe/backend/internal/platform"
	"github.com/clipscribe/backend/pkg/queue"
	"github.com/clipscribe/backend/pkg/response"
	"github.com/clipscribe/backend/pkg/storage"
)

// CreateRequest is the body for POST /transcriptions.
type CreateRequest struct {
	VideoURL string `json:"video_url" binding:"required"`
}

// UpdateTitleRequest is the body for PATCH /transcriptions/:id.
type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required"`
}

// UpdateTagsRequest is the body for PUT /transcriptions/:id/tags.
type UpdateTagsRequest struct {
	Tags []string `json:"tags" binding:"required"`
}

// Store is the repository surface the handler reads and writes through;
// *Repository implements it.
type Store interface {
	Create(ctx context.Context, t *models.Transcription) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Transcription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transcription, error)
	MarkFailed(ctx context.Context, id uuid.UUID) error
	UpdateTitle(ctx context.Context, id, userID uuid.UUID, title string) error
	UpdateTags(ctx context.Context, id, userID uuid.UUID, tags []string) error
	ListTags(ctx context.Context, userID uuid.UUID) ([]string, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// Enqueuer hands accepted jobs to the pipeline; *queue.Queue implements it.
type Enqueuer interface {
	EnqueueTranscription(ctx context.Context, payload queue.TranscriptionPayload) error
}

// Handler handles transcription HTTP endpoints.
type Handler struct {
	repo   Store
	queue  Enqueuer
	audio  *storage.S3 // nil when the audio archive is not configured
	logger *zap.Logger
}

// NewHandler creates a transcription handler. audio may be nil.
func NewHandler(repo Store, q Enqueuer, audio *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, queue: q, audio: audio, logger: logger}
}

// Create handles POST /transcriptions. The URL must belong to a supported
// platform; nothing is persisted for a rejected URL.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "video_url is required")
		return
	}

	p := platform.Detect(req.VideoURL)
	if p == platform.None {
		response.BadRequest(c, "unsupported video URL: expected a TikTok video, Instagram reel or YouTube short")
		return
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	t := &models.Transcription{
		UserID:   userID,
		VideoURL: req.VideoURL,
		Platform: string(p),
	}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		h.logger.Error("create transcription", zap.Error(err))
		response.Internal(c, "failed to create transcription")
		return
	}

	err := h.queue.EnqueueTranscription(c.Request.Context(), queue.TranscriptionPayload{
		TranscriptionID: t.ID,
		VideoURL:        t.VideoURL,
	})
	if err != nil {
		h.logger.Error("enqueue transcription", zap.String("id", t.ID.String()), zap.Error(err))
		_ = h.repo.MarkFailed(c.Request.Context(), t.ID)
		response.Internal(c, "failed to queue transcription")
		return
	}

	response.Created(c, t)
}

// List handles GET /transcriptions.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list transcriptions", zap.Error(err))
		response.Internal(c, "failed to list transcriptions")
		return
	}
	if list == nil {
		list = []models.Transcription{}
	}
	response.OK(c, list)
}

// GetByID handles GET /transcriptions/:id. Clients poll this endpoint until
// status leaves processing.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transcription id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	t, err := h.repo.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		response.NotFound(c, "transcription not found")
		return
	}
	response.OK(c, t)
}

// UpdateTitle handles PATCH /transcriptions/:id.
func (h *Handler) UpdateTitle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transcription id")
		return
	}
	var req UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title is required")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.UpdateTitle(c.Request.Context(), id, userID, req.Title); err != nil {
		response.NotFound(c, "transcription not found")
		return
	}
	t, err := h.repo.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		response.NotFound(c, "transcription not found")
		return
	}
	response.OK(c, t)
}

// UpdateTags handles PUT /transcriptions/:id/tags.
func (h *Handler) UpdateTags(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transcription id")
		return
	}
	var req UpdateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "tags is required")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.UpdateTags(c.Request.Context(), id, userID, req.Tags); err != nil {
		response.NotFound(c, "transcription not found")
		return
	}
	t, err := h.repo.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		response.NotFound(c, "transcription not found")
		return
	}
	response.OK(c, t)
}

// ListTags handles GET /tags.
func (h *Handler) ListTags(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	tags, err := h.repo.ListTags(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list tags", zap.Error(err))
		response.Internal(c, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []string{}
	}
	response.OK(c, gin.H{"tags": tags})
}

// AudioURL handles GET /transcriptions/:id/audio-url. It returns a short-lived
// download link for the archived audio of a completed transcription.
func (h *Handler) AudioURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transcription id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	t, err := h.repo.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		response.NotFound(c, "transcription not found")
		return
	}
	if h.audio == nil || t.AudioURL == "" {
		response.NotFound(c, "no archived audio for this transcription")
		return
	}
	url, err := h.audio.PresignAudioDownload(c.Request.Context(), storage.AudioKey(t.ID.String()))
	if err != nil {
		h.logger.Error("presign audio download", zap.String("id", t.ID.String()), zap.Error(err))
		response.Internal(c, "failed to generate audio link")
		return
	}
	response.OK(c, gin.H{
		"url":        url,
		"expires_in": int(h.audio.PresignExpire().Seconds()),
	})
}

// Delete handles DELETE /transcriptions/:id. Archived audio is removed
// best-effort after the row is gone.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transcription id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	t, err := h.repo.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		response.NotFound(c, "transcription not found")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id, userID); err != nil {
		response.NotFound(c, "transcription not found")
		return
	}
	if h.audio != nil && t.AudioURL != "" {
		if err := h.audio.DeleteAudio(c.Request.Context(), storage.AudioKey(t.ID.String())); err != nil {
			h.logger.Warn("delete archived audio", zap.String("id", t.ID.String()), zap.Error(err))
		}
	}
	response.NoContent(c)
}
