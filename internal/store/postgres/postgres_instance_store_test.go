package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronq/internal/models"
	"cronq/internal/state"
	"cronq/internal/store"
)

func TestPostgresInstanceStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()
	startTime := time.Now().Add(time.Hour)

	mock.ExpectExec("INSERT INTO cronq_schema.instances").
		WithArgs("inst-1", int64(1), state.StatusQueued, startTime).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := instanceStore.Insert(ctx, models.Instance{
		ID:        "inst-1",
		JobID:     1,
		Status:    state.StatusQueued,
		StartTime: startTime,
	})
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInstanceStore_Insert_DuplicateFireInstant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()

	// conflicting (job_id, start_time) claim affects zero rows
	mock.ExpectExec("INSERT INTO cronq_schema.instances").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := instanceStore.Insert(ctx, models.Instance{
		ID:        "inst-2",
		JobID:     1,
		Status:    state.StatusQueued,
		StartTime: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestPostgresInstanceStore_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM cronq_schema.instances").
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "job_id", "status", "start_time", "end_time", "machine", "last_error", "created_at",
		}).AddRow("inst-1", 1, state.StatusQueued, now, nil, nil, nil, now))

	instance, err := instanceStore.FindByID(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusQueued, instance.Status)
	assert.Nil(t, instance.EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInstanceStore_FindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM cronq_schema.instances").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "job_id", "status", "start_time", "end_time", "machine", "last_error", "created_at",
		}))

	_, err = instanceStore.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrInstanceNotFound)
}

func TestPostgresInstanceStore_MarkRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE cronq_schema.instances").
		WithArgs(state.StatusRunning, "worker-1", "inst-1", state.StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, instanceStore.MarkRunning(ctx, "inst-1", "worker-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInstanceStore_MarkCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()
	endTime := time.Now()

	mock.ExpectExec("UPDATE cronq_schema.instances").
		WithArgs(state.StatusCompleted, endTime, "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, instanceStore.MarkCompleted(ctx, "inst-1", endTime))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInstanceStore_MarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()
	endTime := time.Now()

	mock.ExpectExec("UPDATE cronq_schema.instances").
		WithArgs(state.StatusFailed, endTime, "connection refused", "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, instanceStore.MarkFailed(ctx, "inst-1", endTime, "connection refused"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInstanceStore_MarkRequeued(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE cronq_schema.instances").
		WithArgs(state.StatusQueued, "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, instanceStore.MarkRequeued(ctx, "inst-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInstanceStore_ListByStatus_WithCutoff(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-12 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM cronq_schema.instances").
		WithArgs(state.StatusCompleted, cutoff).
		WillReturnRows(sqlmock.NewRows([]string{
			"name", "id", "id", "status", "start_time", "end_time", "machine",
		}).AddRow("five_product_scrape", 1, "inst-1", state.StatusCompleted, now.Add(-time.Hour), now, "worker-1"))

	instances, err := instanceStore.ListByStatus(ctx, state.StatusCompleted, &cutoff)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "five_product_scrape", instances[0].JobName)
	require.NotNil(t, instances[0].EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInstanceStore_ListByStatus_OpenEnded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM cronq_schema.instances").
		WithArgs(state.StatusQueued).
		WillReturnRows(sqlmock.NewRows([]string{
			"name", "id", "id", "status", "start_time", "end_time", "machine",
		}))

	instances, err := instanceStore.ListByStatus(ctx, state.StatusQueued, nil)
	require.NoError(t, err)
	assert.Empty(t, instances)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInstanceStore_CountGroupedByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceStore := NewPostgresInstanceStore(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\)").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(state.StatusQueued, 4).
			AddRow(state.StatusCompleted, 10))

	counts, err := instanceStore.CountGroupedByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, counts[state.StatusQueued])
	assert.Equal(t, 10, counts[state.StatusCompleted])
	// zero buckets are present
	assert.Equal(t, 0, counts[state.StatusRunning])
	assert.Equal(t, 0, counts[state.StatusFailed])
}
