package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"video-batcher/internal/domain"
	"video-batcher/internal/repository/batch"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
)

type BatchRepository struct {
	db      *dbpg.DB
	retries retry.Strategy
}

func NewBatchRepository(db *dbpg.DB, retries retry.Strategy) *BatchRepository {
	return &BatchRepository{
		db:      db,
		retries: retries,
	}
}

func (r *BatchRepository) Create(ctx context.Context, b *domain.Batch) error {
	query := `
		INSERT INTO batches (
			id, session_id, status, planned, rendered, failed,
			seed, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecWithRetry(ctx, r.retries, query,
		b.ID,
		b.SessionID,
		b.Status,
		b.Planned,
		b.Rendered,
		b.Failed,
		int64(b.Seed),
		b.Error,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}

	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	query := `
		SELECT id, session_id, status, planned, rendered, failed,
		       seed, error, created_at, updated_at
		FROM batches
		WHERE id = $1 AND status != $2
	`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, id, domain.BatchDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}

	var (
		b    domain.Batch
		seed int64
	)
	err = row.Scan(
		&b.ID,
		&b.SessionID,
		&b.Status,
		&b.Planned,
		&b.Rendered,
		&b.Failed,
		&seed,
		&b.Error,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, batch.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}
	b.Seed = uint64(seed)

	return &b, nil
}

func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, errMsg string) error {
	query := `UPDATE batches SET status = $1, error = $2, updated_at = $3 WHERE id = $4 AND status != $5`

	return r.execAffecting(ctx, "update status", query, status, errMsg, time.Now(), id, domain.BatchDeleted)
}

// StartProcessing records the resolved plan size and seed once planning succeeded.
func (r *BatchRepository) StartProcessing(ctx context.Context, id string, planned int, seed uint64) error {
	query := `
		UPDATE batches
		SET status = $1, planned = $2, seed = $3, rendered = 0, failed = 0, error = '', updated_at = $4
		WHERE id = $5 AND status != $6
	`

	return r.execAffecting(ctx, "start processing", query, domain.BatchProcessing, planned, int64(seed), time.Now(), id, domain.BatchDeleted)
}

func (r *BatchRepository) UpdateProgress(ctx context.Context, id string, rendered, failed int) error {
	query := `UPDATE batches SET rendered = $1, failed = $2, updated_at = $3 WHERE id = $4 AND status != $5`

	return r.execAffecting(ctx, "update progress", query, rendered, failed, time.Now(), id, domain.BatchDeleted)
}

func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE batches SET status = $1, updated_at = $2 WHERE id = $3 AND status != $1`

	return r.execAffecting(ctx, "delete batch", query, domain.BatchDeleted, time.Now(), id)
}

func (r *BatchRepository) SaveVideoStatus(ctx context.Context, v *domain.VideoStatus) error {
	query := `
		INSERT INTO batch_videos (
			batch_id, index, name, state, duration_ms, frames,
			substituted_frames, skipped_frames, font_size, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (batch_id, index) DO UPDATE SET
			name = EXCLUDED.name,
			state = EXCLUDED.state,
			duration_ms = EXCLUDED.duration_ms,
			frames = EXCLUDED.frames,
			substituted_frames = EXCLUDED.substituted_frames,
			skipped_frames = EXCLUDED.skipped_frames,
			font_size = EXCLUDED.font_size,
			error = EXCLUDED.error
	`

	_, err := r.db.ExecWithRetry(ctx, r.retries, query,
		v.BatchID,
		v.Index,
		v.Name,
		v.State,
		v.Duration.Milliseconds(),
		v.Frames,
		v.SubstitutedFrames,
		v.SkippedFrames,
		v.FontSize,
		v.Error,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save video status: %w", err)
	}

	return nil
}

func (r *BatchRepository) ListVideoStatuses(ctx context.Context, batchID string) ([]domain.VideoStatus, error) {
	query := `
		SELECT batch_id, index, name, state, duration_ms, frames,
		       substituted_frames, skipped_frames, font_size, error, created_at
		FROM batch_videos
		WHERE batch_id = $1
		ORDER BY index
	`

	rows, err := r.db.QueryWithRetry(ctx, r.retries, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query video statuses: %w", err)
	}
	defer rows.Close()

	var videos []domain.VideoStatus
	for rows.Next() {
		var (
			v  domain.VideoStatus
			ms int64
		)
		err := rows.Scan(
			&v.BatchID,
			&v.Index,
			&v.Name,
			&v.State,
			&ms,
			&v.Frames,
			&v.SubstitutedFrames,
			&v.SkippedFrames,
			&v.FontSize,
			&v.Error,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video status: %w", err)
		}
		v.Duration = time.Duration(ms) * time.Millisecond
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating video statuses: %w", err)
	}

	return videos, nil
}

// SaveArchivePart upserts a part row. A deleted batch accepts no new parts and
// reports ErrBatchNotFound.
func (r *BatchRepository) SaveArchivePart(ctx context.Context, p *domain.ArchivePart) error {
	query := `
		INSERT INTO batch_archives (batch_id, part, name, path, size, videos, created_at)
		SELECT $1::uuid, $2::integer, $3::text, $4::text, $5::bigint, $6::text, $7::timestamptz
		WHERE EXISTS (SELECT 1 FROM batches WHERE id = $1::uuid AND status != $8)
		ON CONFLICT (batch_id, part) DO UPDATE SET
			name = EXCLUDED.name,
			path = EXCLUDED.path,
			size = EXCLUDED.size,
			videos = EXCLUDED.videos,
			created_at = EXCLUDED.created_at
	`

	return r.execAffecting(ctx, "save archive part", query,
		p.BatchID,
		p.Part,
		p.Name,
		p.Path,
		p.Size,
		strings.Join(p.Videos, "\n"),
		p.CreatedAt,
		domain.BatchDeleted,
	)
}

func (r *BatchRepository) ListArchiveParts(ctx context.Context, batchID string) ([]domain.ArchivePart, error) {
	query := `
		SELECT batch_id, part, name, path, size, videos, created_at
		FROM batch_archives
		WHERE batch_id = $1
		ORDER BY part
	`

	rows, err := r.db.QueryWithRetry(ctx, r.retries, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive parts: %w", err)
	}
	defer rows.Close()

	var parts []domain.ArchivePart
	for rows.Next() {
		p, err := scanArchivePart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive parts: %w", err)
	}

	return parts, nil
}

func (r *BatchRepository) GetArchivePart(ctx context.Context, batchID string, part int) (*domain.ArchivePart, error) {
	query := `
		SELECT batch_id, part, name, path, size, videos, created_at
		FROM batch_archives
		WHERE batch_id = $1 AND part = $2
	`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, batchID, part)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive part: %w", err)
	}

	p, err := scanArchivePart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, batch.ErrArchiveNotFound
	}
	return p, err
}

func (r *BatchRepository) DeleteArchiveParts(ctx context.Context, batchID string) error {
	query := `DELETE FROM batch_archives WHERE batch_id = $1`

	if _, err := r.db.ExecWithRetry(ctx, r.retries, query, batchID); err != nil {
		return fmt.Errorf("failed to delete archive parts: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchivePart(s scanner) (*domain.ArchivePart, error) {
	var (
		p      domain.ArchivePart
		videos string
	)
	err := s.Scan(&p.BatchID, &p.Part, &p.Name, &p.Path, &p.Size, &videos, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan archive part: %w", err)
	}
	if videos != "" {
		p.Videos = strings.Split(videos, "\n")
	}
	return &p, nil
}

func (r *BatchRepository) execAffecting(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecWithRetry(ctx, r.retries, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return batch.ErrBatchNotFound
	}

	return nil
}
