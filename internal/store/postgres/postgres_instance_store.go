package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"cronq/internal/models"
	"cronq/internal/state"
	"cronq/internal/store"
	"cronq/types"
)

type PostgresInstanceStore struct {
	db *sql.DB
}

func NewPostgresInstanceStore(db *sql.DB) *PostgresInstanceStore {
	return &PostgresInstanceStore{db: db}
}

// Insert claims an instance row for a (job, fire instant) pair. The unique
// index on (job_id, start_time) makes the claim idempotent across
// overlapping scheduler cycles: the second insert for the same pair affects
// zero rows and the caller must not enqueue a duplicate message.
func (r *PostgresInstanceStore) Insert(ctx context.Context, instance models.Instance) (bool, error) {
	query := `
		INSERT INTO cronq_schema.instances (id, job_id, status, start_time, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (job_id, start_time) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query, instance.ID, instance.JobID, instance.Status, instance.StartTime)
	if err != nil {
		return false, fmt.Errorf("failed to insert instance: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (r *PostgresInstanceStore) FindByID(ctx context.Context, instanceID string) (*models.Instance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, status, start_time, end_time, machine, last_error, created_at
		FROM cronq_schema.instances
		WHERE id = $1`, instanceID)

	var instance models.Instance
	err := row.Scan(
		&instance.ID, &instance.JobID, &instance.Status,
		&instance.StartTime, &instance.EndTime,
		&instance.Machine, &instance.LastError, &instance.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}
	return &instance, nil
}

func (r *PostgresInstanceStore) MarkRunning(ctx context.Context, instanceID string, machine string) error {
	query := `
	UPDATE cronq_schema.instances
	SET status = $1, machine = $2
	WHERE id = $3 AND status = $4;
	`
	_, err := r.db.ExecContext(ctx, query, state.StatusRunning, machine, instanceID, state.StatusQueued)
	return err
}

func (r *PostgresInstanceStore) MarkCompleted(ctx context.Context, instanceID string, endTime time.Time) error {
	query := `
	UPDATE cronq_schema.instances
	SET status = $1, end_time = $2, last_error = NULL
	WHERE id = $3;
	`
	_, err := r.db.ExecContext(ctx, query, state.StatusCompleted, endTime, instanceID)
	return err
}

func (r *PostgresInstanceStore) MarkFailed(ctx context.Context, instanceID string, endTime time.Time, errMsg string) error {
	query := `
	UPDATE cronq_schema.instances
	SET status = $1, end_time = $2, last_error = $3
	WHERE id = $4;
	`
	_, err := r.db.ExecContext(ctx, query, state.StatusFailed, endTime, errMsg, instanceID)
	return err
}

func (r *PostgresInstanceStore) MarkRequeued(ctx context.Context, instanceID string) error {
	query := `
	UPDATE cronq_schema.instances
	SET status = $1, end_time = NULL, last_error = NULL, machine = NULL
	WHERE id = $2;
	`
	_, err := r.db.ExecContext(ctx, query, state.StatusQueued, instanceID)
	return err
}

const reportColumns = `j.name, j.id, i.id, i.status, i.start_time, i.end_time, i.machine`

func (r *PostgresInstanceStore) ListByStatus(ctx context.Context, status state.InstanceStatus, endedAfter *time.Time) ([]models.InstanceReportRow, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM cronq_schema.instances i
		JOIN cronq_schema.jobs j ON i.job_id = j.id
		WHERE i.status = $1
	`
	args := []any{status}
	if endedAfter != nil {
		query += ` AND i.end_time >= $2`
		args = append(args, *endedAfter)
	}
	query += ` ORDER BY i.start_time ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances by status: %w", err)
	}
	defer rows.Close()

	return scanReportRows(rows), nil
}

func (r *PostgresInstanceStore) ListPage(ctx context.Context, page int, pageSize int, status state.InstanceStatus) (*types.PaginationResult[models.InstanceReportRow], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var args []any
	where := "TRUE"

	argIndex := 1
	if status != "" {
		where += fmt.Sprintf(" AND i.status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	countQuery := `SELECT COUNT(*) FROM cronq_schema.instances i WHERE ` + where
	selectQuery := fmt.Sprintf(`
		SELECT `+reportColumns+`
		FROM cronq_schema.instances i
		JOIN cronq_schema.jobs j ON i.job_id = j.id
		WHERE %s
		ORDER BY i.start_time DESC
		LIMIT $%d OFFSET $%d`, where, argIndex, argIndex+1)

	var totalItems int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalItems)
	if err != nil {
		return nil, fmt.Errorf("failed to count instances: %w", err)
	}

	args = append(args, pageSize, offset)
	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	instances := scanReportRows(rows)

	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	result := &types.PaginationResult[models.InstanceReportRow]{
		Items:           instances,
		TotalItems:      totalItems,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}

	return result, nil
}

func (r *PostgresInstanceStore) CountGroupedByStatus(ctx context.Context) (map[state.InstanceStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) AS count
		FROM cronq_schema.instances
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[state.InstanceStatus]int)
	for rows.Next() {
		var status state.InstanceStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}

	for _, status := range state.AllStatuses {
		if _, ok := result[status]; !ok {
			result[status] = 0
		}
	}

	return result, nil
}

func (r *PostgresInstanceStore) Close() error {
	return r.db.Close()
}

func scanReportRows(rows *sql.Rows) []models.InstanceReportRow {
	var instances []models.InstanceReportRow
	for rows.Next() {
		var row models.InstanceReportRow
		err := rows.Scan(
			&row.JobName, &row.JobID, &row.InstanceID,
			&row.Status, &row.StartTime, &row.EndTime, &row.Machine,
		)
		if err != nil {
			log.Println("PostgresInstanceStore: scan error:", err)
			continue
		}
		instances = append(instances, row)
	}
	return instances
}
