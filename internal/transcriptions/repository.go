package transcriptions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipscribe/backend/internal/models"
)

const transcriptionColumns = `id, user_id, video_url, platform,
	COALESCE(title, ''), COALESCE(transcript, ''), COALESCE(audio_url, ''),
	COALESCE(duration_seconds, 0), status, COALESCE(tags, '{}'), created_at, updated_at`

// Repository handles transcription persistence. Status writes enforce the
// lifecycle at the SQL level: completed and failed rows never change again.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a transcription repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTranscription(row interface{ Scan(dest ...any) error }) (*models.Transcription, error) {
	var t models.Transcription
	err := row.Scan(&t.ID, &t.UserID, &t.VideoURL, &t.Platform,
		&t.Title, &t.Transcript, &t.AudioURL,
		&t.DurationSeconds, &t.Status, &t.Tags, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new transcription in processing state.
func (r *Repository) Create(ctx context.Context, t *models.Transcription) error {
	const q = `INSERT INTO transcriptions (id, user_id, video_url, platform, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	t.Status = models.StatusProcessing
	return r.pool.QueryRow(ctx, q, t.UserID, t.VideoURL, t.Platform, t.Status).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns a transcription owned by userID.
func (r *Repository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Transcription, error) {
	q := `SELECT ` + transcriptionColumns + ` FROM transcriptions WHERE id = $1 AND user_id = $2`
	return scanTranscription(r.pool.QueryRow(ctx, q, id, userID))
}

// ListByUser returns all transcriptions owned by userID, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transcription, error) {
	q := `SELECT ` + transcriptionColumns + ` FROM transcriptions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Transcription
	for rows.Next() {
		t, err := scanTranscription(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// MarkProcessing confirms the row is in processing before the pipeline starts.
// Re-marking a row already in processing is a no-op; a terminal row is an error.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE transcriptions SET updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcription %s is not in processing state", id)
	}
	return nil
}

// MarkFailed moves a processing row to failed. Terminal rows are left alone.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE transcriptions SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// Complete moves a processing row to completed with the pipeline's results.
// audioURL may be empty when the audio archive is not configured.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, transcript, title string, durationSeconds int, audioURL string) error {
	const q = `UPDATE transcriptions
		SET status = 'completed', transcript = $2, title = $3, duration_seconds = $4,
			audio_url = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	tag, err := r.pool.Exec(ctx, q, id, transcript, title, durationSeconds, audioURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcription %s is not in processing state", id)
	}
	return nil
}

// UpdateTitle sets a user-chosen title on an owned transcription.
func (r *Repository) UpdateTitle(ctx context.Context, id, userID uuid.UUID, title string) error {
	const q = `UPDATE transcriptions SET title = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, userID, title)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcription %s not found", id)
	}
	return nil
}

// UpdateTags replaces the tag list on an owned transcription.
func (r *Repository) UpdateTags(ctx context.Context, id, userID uuid.UUID, tags []string) error {
	const q = `UPDATE transcriptions SET tags = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, userID, tags)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcription %s not found", id)
	}
	return nil
}

// ListTags returns the distinct tags across all of a user's transcriptions.
func (r *Repository) ListTags(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const q = `SELECT DISTINCT unnest(tags) AS tag FROM transcriptions
		WHERE user_id = $1 ORDER BY tag`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Delete removes an owned transcription.
func (r *Repository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	const q = `DELETE FROM transcriptions WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcription %s not found", id)
	}
	return nil
}
