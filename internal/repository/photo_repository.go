package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"photoflow/internal/models"
)

var ErrPhotoNotFound = errors.New("photo not found")

const photoColumns = `id, name, url, status, progress, uploaded_at, processed_at, error, logs, retry_count`

type PhotoRepository struct {
	pool *pgxpool.Pool
}

func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

// Create inserts a fresh record: queued, zero progress, empty log.
func (r *PhotoRepository) Create(ctx context.Context, id, name, url string) error {
	const query = `
		INSERT INTO photos (id, name, url, status, progress, logs, retry_count, uploaded_at)
		VALUES ($1, $2, $3, $4, 0, '[]', 0, NOW())
	`
	_, err := r.pool.Exec(ctx, query, id, name, url, models.PhotoStatusQueued)
	return err
}

func (r *PhotoRepository) GetByID(ctx context.Context, id string) (models.Photo, error) {
	query := fmt.Sprintf(`SELECT %s FROM photos WHERE id = $1`, photoColumns)

	row := r.pool.QueryRow(ctx, query, id)
	photo, err := scanPhoto(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Photo{}, ErrPhotoNotFound
		}
		return models.Photo{}, err
	}
	return photo, nil
}

// List returns every photo, newest upload first.
func (r *PhotoRepository) List(ctx context.Context) ([]models.Photo, error) {
	query := fmt.Sprintf(`SELECT %s FROM photos ORDER BY uploaded_at DESC`, photoColumns)
	return r.queryPhotos(ctx, query)
}

// ListProcessing returns photos still in flight (queued or processing),
// oldest upload first so ticks advance them in arrival order.
func (r *PhotoRepository) ListProcessing(ctx context.Context) ([]models.Photo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM photos
		WHERE status IN ($1, $2)
		ORDER BY uploaded_at ASC`, photoColumns)
	return r.queryPhotos(ctx, query, models.PhotoStatusQueued, models.PhotoStatusProcessing)
}

// ListDone returns completed photos, most recently finished first.
func (r *PhotoRepository) ListDone(ctx context.Context) ([]models.Photo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM photos
		WHERE status = $1
		ORDER BY processed_at DESC`, photoColumns)
	return r.queryPhotos(ctx, query, models.PhotoStatusDone)
}

// ListFailedRetryable returns failed photos that still have retry budget.
func (r *PhotoRepository) ListFailedRetryable(ctx context.Context, maxRetries int) ([]models.Photo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM photos
		WHERE status = $1 AND retry_count < $2
		ORDER BY uploaded_at ASC`, photoColumns)
	return r.queryPhotos(ctx, query, models.PhotoStatusFailed, maxRetries)
}

// ListFailedBefore returns terminally failed photos uploaded before the cutoff.
func (r *PhotoRepository) ListFailedBefore(ctx context.Context, maxRetries int, cutoff time.Time) ([]models.Photo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM photos
		WHERE status = $1 AND retry_count >= $2 AND uploaded_at < $3
		ORDER BY uploaded_at ASC`, photoColumns)
	return r.queryPhotos(ctx, query, models.PhotoStatusFailed, maxRetries, cutoff)
}

// Update merges only the fields set on upd into the photo row.
func (r *PhotoRepository) Update(ctx context.Context, id string, upd models.PhotoUpdate) error {
	set := make([]string, 0, 8)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Progress != nil {
		add("progress", *upd.Progress)
	}
	if upd.ProcessedAt != nil {
		add("processed_at", *upd.ProcessedAt)
	}
	if upd.ClearError {
		set = append(set, "error = NULL")
	} else if upd.Error != nil {
		add("error", *upd.Error)
	}
	if upd.Logs != nil {
		encoded, err := json.Marshal(upd.Logs)
		if err != nil {
			return fmt.Errorf("encode logs: %w", err)
		}
		args = append(args, string(encoded))
		set = append(set, fmt.Sprintf("logs = $%d::jsonb", len(args)))
	}
	if upd.RetryCount != nil {
		add("retry_count", *upd.RetryCount)
	}
	if upd.URL != nil {
		add("url", *upd.URL)
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE photos SET %s WHERE id = $1`, strings.Join(set, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

func (r *PhotoRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM photos WHERE id = ANY($1)`
	_, err := r.pool.Exec(ctx, query, ids)
	return err
}

func (r *PhotoRepository) queryPhotos(ctx context.Context, query string, args ...any) ([]models.Photo, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func scanPhoto(row pgx.Row) (models.Photo, error) {
	var photo models.Photo
	err := row.Scan(
		&photo.ID,
		&photo.Name,
		&photo.URL,
		&photo.Status,
		&photo.Progress,
		&photo.UploadedAt,
		&photo.ProcessedAt,
		&photo.Error,
		&photo.Logs,
		&photo.RetryCount,
	)
	return photo, err
}
