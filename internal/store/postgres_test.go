package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ocr_jobs (
	job_id         TEXT PRIMARY KEY,
	storage_key    TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	content_type   TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NULL,
	extracted_data TEXT NULL,
	error_message  TEXT NULL
);
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresStore(t *testing.T) {
	runJobStoreContract(t, func(t *testing.T) JobStore {
		return NewPostgresStore(openTestDB(t), discardLogger())
	})
}

func TestPostgresStore_UpdateRollsBackWhenReadBackFails(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := NewPostgresStore(db, discardLogger())
	require.NoError(t, s.Create(ctx, newPendingJob(testJobID, time.Now().UTC())))

	// corrupt the row inside the claiming statement so decoding it fails
	_, err := db.Exec(`
		CREATE TRIGGER corrupt_claim AFTER UPDATE OF status ON ocr_jobs
		WHEN NEW.status = 'PROCESSING'
		BEGIN
			UPDATE ocr_jobs SET extracted_data = '{broken' WHERE job_id = NEW.job_id;
		END`)
	require.NoError(t, err)

	claim := domain.JobUpdate{
		From:      domain.JobStatusPending,
		To:        domain.JobStatusProcessing,
		UpdatedAt: time.Now().UTC(),
	}

	_, err = s.Update(ctx, testJobID, claim)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidTransition)

	job, err := s.Get(ctx, testJobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Nil(t, job.ExtractedData)
	assert.Nil(t, job.UpdatedAt)

	// a retried claim succeeds once the read-back works again
	_, err = db.Exec(`DROP TRIGGER corrupt_claim`)
	require.NoError(t, err)

	job, err = s.Update(ctx, testJobID, claim)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
}
