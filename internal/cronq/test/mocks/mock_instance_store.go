package mocks

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"cronq/internal/models"
	"cronq/internal/state"
	"cronq/internal/store"
	"cronq/types"
)

type MockInstanceStore struct {
	mu        sync.Mutex
	instances map[string]*models.Instance
	jobNames  map[int64]string
	FindErr   error
	InsertErr error
}

func NewMockInstanceStore() *MockInstanceStore {
	return &MockInstanceStore{
		instances: make(map[string]*models.Instance),
		jobNames:  make(map[int64]string),
	}
}

// SetJobName registers the job name used in report rows.
func (m *MockInstanceStore) SetJobName(jobID int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobNames[jobID] = name
}

// Get returns a copy of the stored instance, or nil.
func (m *MockInstanceStore) Get(instanceID string) *models.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	instance, exists := m.instances[instanceID]
	if !exists {
		return nil
	}
	found := *instance
	return &found
}

// All returns copies of every stored instance.
func (m *MockInstanceStore) All() []models.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Instance
	for _, instance := range m.instances {
		all = append(all, *instance)
	}
	return all
}

func (m *MockInstanceStore) Insert(ctx context.Context, instance models.Instance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return false, m.InsertErr
	}

	for _, existing := range m.instances {
		if existing.JobID == instance.JobID && existing.StartTime.Equal(instance.StartTime) {
			return false, nil
		}
	}
	stored := instance
	m.instances[instance.ID] = &stored
	return true, nil
}

func (m *MockInstanceStore) FindByID(ctx context.Context, instanceID string) (*models.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindErr != nil {
		return nil, m.FindErr
	}

	instance, exists := m.instances[instanceID]
	if !exists {
		return nil, store.ErrInstanceNotFound
	}
	found := *instance
	return &found, nil
}

func (m *MockInstanceStore) MarkRunning(ctx context.Context, instanceID string, machine string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if instance, exists := m.instances[instanceID]; exists && instance.Status == state.StatusQueued {
		instance.Status = state.StatusRunning
		instance.Machine = &machine
	}
	return nil
}

func (m *MockInstanceStore) MarkCompleted(ctx context.Context, instanceID string, endTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if instance, exists := m.instances[instanceID]; exists {
		instance.Status = state.StatusCompleted
		instance.EndTime = &endTime
		instance.LastError = nil
	}
	return nil
}

func (m *MockInstanceStore) MarkFailed(ctx context.Context, instanceID string, endTime time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if instance, exists := m.instances[instanceID]; exists {
		instance.Status = state.StatusFailed
		instance.EndTime = &endTime
		instance.LastError = &errMsg
	}
	return nil
}

func (m *MockInstanceStore) MarkRequeued(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if instance, exists := m.instances[instanceID]; exists {
		instance.Status = state.StatusQueued
		instance.EndTime = nil
		instance.LastError = nil
		instance.Machine = nil
	}
	return nil
}

func (m *MockInstanceStore) ListByStatus(ctx context.Context, status state.InstanceStatus, endedAfter *time.Time) ([]models.InstanceReportRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []models.InstanceReportRow
	for _, instance := range m.instances {
		if instance.Status != status {
			continue
		}
		if endedAfter != nil && (instance.EndTime == nil || instance.EndTime.Before(*endedAfter)) {
			continue
		}
		rows = append(rows, m.reportRow(instance))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartTime.Before(rows[j].StartTime) })
	return rows, nil
}

func (m *MockInstanceStore) ListPage(ctx context.Context, page int, pageSize int, status state.InstanceStatus) (*types.PaginationResult[models.InstanceReportRow], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []models.InstanceReportRow
	for _, instance := range m.instances {
		if status != "" && instance.Status != status {
			continue
		}
		rows = append(rows, m.reportRow(instance))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartTime.After(rows[j].StartTime) })

	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}

	totalPages := int(math.Ceil(float64(len(rows)) / float64(pageSize)))
	return &types.PaginationResult[models.InstanceReportRow]{
		Items:           rows[start:end],
		TotalItems:      len(rows),
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func (m *MockInstanceStore) CountGroupedByStatus(ctx context.Context) (map[state.InstanceStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[state.InstanceStatus]int)
	for _, status := range state.AllStatuses {
		result[status] = 0
	}
	for _, instance := range m.instances {
		result[instance.Status]++
	}
	return result, nil
}

func (m *MockInstanceStore) Close() error {
	return nil
}

func (m *MockInstanceStore) reportRow(instance *models.Instance) models.InstanceReportRow {
	return models.InstanceReportRow{
		JobName:    m.jobNames[instance.JobID],
		JobID:      instance.JobID,
		InstanceID: instance.ID,
		Status:     instance.Status,
		StartTime:  instance.StartTime,
		EndTime:    instance.EndTime,
		Machine:    instance.Machine,
	}
}
