package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/database"
)

// Checkpoint is the last verified unique-key value of one table in one job,
// with the chunks and records verified up to it.
type Checkpoint struct {
	JobID        uuid.UUID
	TableName    string
	MaxKey       any
	ChunkCount   int
	RecordsCount int64
	UpdatedAt    time.Time
}

// CheckpointRepository persists verification progress so a job can resume.
type CheckpointRepository interface {
	// Get returns apperrors.ErrNotFound when the table has no checkpoint.
	Get(ctx context.Context, jobID uuid.UUID, table string) (*Checkpoint, error)

	// Save inserts or replaces the table's checkpoint.
	Save(ctx context.Context, cp *Checkpoint) error

	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*Checkpoint, error)

	DeleteByJob(ctx context.Context, jobID uuid.UUID) error
}

type checkpointRepository struct {
	db *database.DB
}

func NewCheckpointRepository(db *database.DB) CheckpointRepository {
	return &checkpointRepository{db: db}
}

func (r *checkpointRepository) Get(ctx context.Context, jobID uuid.UUID, table string) (*Checkpoint, error) {
	row := r.db.QueryRow(ctx, `
		SELECT job_id, table_name, max_key_kind, max_key, chunk_count, records_count, updated_at
		FROM consistency_checkpoints
		WHERE job_id = $1 AND table_name = $2`, jobID, table)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint for %s: %w", table, err)
	}
	return cp, nil
}

func (r *checkpointRepository) Save(ctx context.Context, cp *Checkpoint) error {
	kind, text, err := EncodeKey(cp.MaxKey)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint for %s: %w", cp.TableName, err)
	}

	cp.UpdatedAt = time.Now()
	_, err = r.db.Exec(ctx, `
		INSERT INTO consistency_checkpoints (job_id, table_name, max_key_kind, max_key, chunk_count, records_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id, table_name) DO UPDATE SET
			max_key_kind = EXCLUDED.max_key_kind,
			max_key = EXCLUDED.max_key,
			chunk_count = EXCLUDED.chunk_count,
			records_count = EXCLUDED.records_count,
			updated_at = EXCLUDED.updated_at`,
		cp.JobID, cp.TableName, string(kind), text, cp.ChunkCount, cp.RecordsCount, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", cp.TableName, err)
	}
	return nil
}

func (r *checkpointRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*Checkpoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT job_id, table_name, max_key_kind, max_key, chunk_count, records_count, updated_at
		FROM consistency_checkpoints
		WHERE job_id = $1
		ORDER BY table_name`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}

func (r *checkpointRepository) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM consistency_checkpoints WHERE job_id = $1", jobID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	return nil
}

func scanCheckpoint(row pgx.Row) (*Checkpoint, error) {
	var cp Checkpoint
	var kind, text string
	if err := row.Scan(&cp.JobID, &cp.TableName, &kind, &text, &cp.ChunkCount, &cp.RecordsCount, &cp.UpdatedAt); err != nil {
		return nil, err
	}
	key, err := DecodeKey(KeyKind(kind), text)
	if err != nil {
		return nil, err
	}
	cp.MaxKey = key
	return &cp, nil
}

var _ CheckpointRepository = (*checkpointRepository)(nil)
