package pipeline

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipscribe/backend/pkg/response"
)

// ProcessRequest is the body for POST /internal/process-video. Both fields
// are required; a missing field is a client error, not a pipeline failure.
type ProcessRequest struct {
	TranscriptionID string `json:"transcription_id" binding:"required"`
	VideoURL        string `json:"video_url" binding:"required"`
}

// Handler exposes the synchronous pipeline trigger. The submitter normally
// fires this without awaiting it; the job row reflects the terminal state
// regardless of whether this response is observed.
type Handler struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

// NewHandler creates the trigger handler.
func NewHandler(p *Pipeline, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pipeline: p, logger: logger}
}

// ProcessVideo handles POST /internal/process-video. It runs the pipeline to
// completion and reports the transcript or the failure detail.
func (h *Handler) ProcessVideo(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "transcription_id and video_url are required")
		return
	}
	id, err := uuid.Parse(req.TranscriptionID)
	if err != nil {
		response.BadRequest(c, "invalid transcription_id")
		return
	}

	// Detached from the request lifetime: a caller that disconnects must not
	// abort an in-flight tool invocation.
	result, err := h.pipeline.Run(context.WithoutCancel(c.Request.Context()), id, req.VideoURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to process video",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"transcription_id": result.TranscriptionID,
		"transcript":       result.Transcript,
		"duration":         result.DurationSeconds,
	})
}
