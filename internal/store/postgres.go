package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

// PostgresSchema creates the jobs table used by PostgresStore.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS ocr_jobs (
	job_id         TEXT PRIMARY KEY,
	storage_key    TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	content_type   TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NULL,
	extracted_data JSONB NULL,
	error_message  TEXT NULL
)`

const jobColumns = `job_id, storage_key, file_name, content_type, status,
	created_at, updated_at, extracted_data, error_message`

// jobRow is the ocr_jobs row shape
type jobRow struct {
	JobID         string         `db:"job_id"`
	StorageKey    string         `db:"storage_key"`
	FileName      string         `db:"file_name"`
	ContentType   string         `db:"content_type"`
	Status        string         `db:"status"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
	ExtractedData sql.NullString `db:"extracted_data"`
	ErrorMessage  sql.NullString `db:"error_message"`
}

// PostgresStore handles job persistence in a SQL database through sqlx.
// Queries use '?' placeholders and are rebound for the connected driver.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the jobs table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}

// Create inserts a new job record
func (s *PostgresStore) Create(ctx context.Context, job *domain.Job) error {
	query := s.db.Rebind(`
		INSERT INTO ocr_jobs (
			job_id, storage_key, file_name, content_type, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING
	`)

	result, err := s.db.ExecContext(ctx, query,
		job.JobID,
		job.StorageKey,
		job.FileName,
		job.ContentType,
		string(job.Status),
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, job.JobID)
	}

	s.logger.Debug("Job created",
		slog.String("job_id", job.JobID),
		slog.String("storage_key", job.StorageKey),
	)

	return nil
}

// Update applies a status change only while the stored status equals update.From
func (s *PostgresStore) Update(ctx context.Context, jobID string, update domain.JobUpdate) (*domain.Job, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	var extracted sql.NullString
	if update.ExtractedData != nil {
		data, err := json.Marshal(update.ExtractedData)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extracted data: %w", err)
		}
		extracted = sql.NullString{String: string(data), Valid: true}
	}

	var errorMessage sql.NullString
	if update.ErrorMessage != "" {
		errorMessage = sql.NullString{String: update.ErrorMessage, Valid: true}
	}

	query := s.db.Rebind(`
		UPDATE ocr_jobs
		SET status = ?,
		    extracted_data = ?,
		    error_message = ?,
		    updated_at = ?
		WHERE job_id = ?
		  AND status = ?
	`)

	// The transition only commits once the updated row has been read back.
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query,
		string(update.To),
		extracted,
		errorMessage,
		update.UpdatedAt,
		jobID,
		string(update.From),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		current, err := s.get(ctx, tx, jobID)
		if err != nil {
			return nil, err
		}
		s.logger.Warn("Job status update rejected",
			slog.String("job_id", jobID),
			slog.String("status", string(current.Status)),
			slog.String("expected", string(update.From)),
			slog.String("target", string(update.To)),
		)
		return nil, fmt.Errorf("%w: job %s is %s, expected %s", domain.ErrInvalidTransition, jobID, current.Status, update.From)
	}

	job, err := s.get(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job update: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(update.To)),
	)

	return job, nil
}

// Get retrieves a job by its ID
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.get(ctx, s.db, jobID)
}

func (s *PostgresStore) get(ctx context.Context, q sqlx.QueryerContext, jobID string) (*domain.Job, error) {
	query := s.db.Rebind(`SELECT ` + jobColumns + ` FROM ocr_jobs WHERE job_id = ?`)

	var row jobRow
	if err := sqlx.GetContext(ctx, q, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

func (r jobRow) toDomain() (*domain.Job, error) {
	job := &domain.Job{
		JobID:       r.JobID,
		StorageKey:  r.StorageKey,
		FileName:    r.FileName,
		ContentType: r.ContentType,
		Status:      domain.Status(r.Status),
		CreatedAt:   r.CreatedAt,
	}

	if r.UpdatedAt.Valid {
		updatedAt := r.UpdatedAt.Time
		job.UpdatedAt = &updatedAt
	}

	if r.ExtractedData.Valid {
		var data domain.ExtractedData
		if err := json.Unmarshal([]byte(r.ExtractedData.String), &data); err != nil {
			return nil, fmt.Errorf("failed to decode extracted data for job %s: %w", r.JobID, err)
		}
		job.ExtractedData = &data
	}

	if r.ErrorMessage.Valid {
		msg := r.ErrorMessage.String
		job.ErrorMessage = &msg
	}

	return job, nil
}
