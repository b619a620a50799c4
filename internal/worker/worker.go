package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clipscribe/backend/internal/pipeline"
	"github.com/clipscribe/backend/pkg/queue"
)

// dequeueBackoff is how long the loop sleeps after a Redis error before
// blocking on the queue again.
const dequeueBackoff = 2 * time.Second

// TranscriptionProcessor consumes transcription jobs and runs them through the
// pipeline. A job that fails stays failed; the loop never re-enqueues it.
type TranscriptionProcessor struct {
	pipeline *pipeline.Pipeline
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewTranscriptionProcessor creates a transcription job processor.
func NewTranscriptionProcessor(p *pipeline.Pipeline, q *queue.Queue, logger *zap.Logger) *TranscriptionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptionProcessor{pipeline: p, queue: q, logger: logger}
}

// Process executes one transcription job.
func (p *TranscriptionProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTranscription {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TranscriptionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	result, err := p.pipeline.Run(ctx, payload.TranscriptionID, payload.VideoURL)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			p.logger.Warn("duplicate job skipped",
				zap.String("transcription_id", payload.TranscriptionID.String()))
			return nil
		}
		return err
	}

	p.logger.Info("transcription completed",
		zap.String("transcription_id", result.TranscriptionID.String()),
		zap.Int("duration_seconds", result.DurationSeconds))
	return nil
}

// Run starts the worker loop: dequeue and process until ctx is done. Failed
// jobs are logged and dropped; their row already carries the failed status.
func (p *TranscriptionProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("transcription worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("transcription worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(dequeueBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}
