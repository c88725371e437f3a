package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"

	"cronq/internal/models"
	"cronq/internal/store"
	"cronq/types"
)

type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

const jobColumns = `id, name, cron_schedule, dispatch_method, dispatch_endpoint, dispatch_body, status, created_at, updated_at`

func (r *PostgresJobStore) FetchActive(ctx context.Context, page int, pageSize int) (*types.PaginationResult[models.Job], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	where := `status = 'active'`

	countQuery := `SELECT COUNT(*) FROM cronq_schema.jobs WHERE ` + where
	selectQuery := fmt.Sprintf(`
		SELECT `+jobColumns+`
		FROM cronq_schema.jobs
		WHERE %s
		ORDER BY name ASC
		LIMIT $1 OFFSET $2`, where)

	var totalItems int
	err := r.db.QueryRowContext(ctx, countQuery).Scan(&totalItems)
	if err != nil {
		return nil, fmt.Errorf("failed to count active jobs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, selectQuery, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Println("PostgresJobStore: scan error:", err)
			continue
		}
		jobs = append(jobs, *job)
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	result := &types.PaginationResult[models.Job]{
		Items:           jobs,
		TotalItems:      totalItems,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}

	return result, nil
}

func (r *PostgresJobStore) FindByName(ctx context.Context, name string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM cronq_schema.jobs
		WHERE name = $1`, name)
	return scanJobRow(row)
}

func (r *PostgresJobStore) FindByID(ctx context.Context, id int64) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM cronq_schema.jobs
		WHERE id = $1`, id)
	return scanJobRow(row)
}

func (r *PostgresJobStore) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var body []byte
	err := row.Scan(
		&job.ID, &job.Name, &job.CronSchedule,
		&job.DispatchMethod, &job.DispatchEndpoint, &body,
		&job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.DispatchBody = body
	return &job, nil
}

func scanJobRow(row *sql.Row) (*models.Job, error) {
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return job, nil
}
