package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"cronq/internal/models"
	"cronq/internal/store"
	"cronq/types"
)

type MockJobStore struct {
	mu       sync.Mutex
	jobs     map[int64]*models.Job
	FetchErr error
}

func NewMockJobStore() *MockJobStore {
	return &MockJobStore{
		jobs: make(map[int64]*models.Job),
	}
}

func (m *MockJobStore) Add(job models.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = &job
}

func (m *MockJobStore) FetchActive(ctx context.Context, page int, pageSize int) (*types.PaginationResult[models.Job], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchErr != nil {
		return nil, m.FetchErr
	}

	var active []models.Job
	for _, job := range m.jobs {
		if job.Status == models.JobActive {
			active = append(active, *job)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })

	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(active) {
		start = len(active)
	}
	if end > len(active) {
		end = len(active)
	}

	totalPages := int(math.Ceil(float64(len(active)) / float64(pageSize)))
	return &types.PaginationResult[models.Job]{
		Items:           active[start:end],
		TotalItems:      len(active),
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func (m *MockJobStore) FindByName(ctx context.Context, name string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Name == name {
			found := *job
			return &found, nil
		}
	}
	return nil, store.ErrJobNotFound
}

func (m *MockJobStore) FindByID(ctx context.Context, id int64) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, store.ErrJobNotFound
	}
	found := *job
	return &found, nil
}

func (m *MockJobStore) Close() error {
	return nil
}
