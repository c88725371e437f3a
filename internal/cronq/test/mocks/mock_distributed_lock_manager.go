package mocks

import "sync"

// MockDistributedLockManager is a no-op lock that records acquire/release
// counts.
type MockDistributedLockManager struct {
	mu       sync.Mutex
	Acquired map[int]int
	Released map[int]int
	AcquireErr error
}

func NewMockDistributedLockManager() *MockDistributedLockManager {
	return &MockDistributedLockManager{
		Acquired: make(map[int]int),
		Released: make(map[int]int),
	}
}

func (m *MockDistributedLockManager) Acquire(lockID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireErr != nil {
		return m.AcquireErr
	}
	m.Acquired[lockID]++
	return nil
}

func (m *MockDistributedLockManager) Release(lockID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Released[lockID]++
	return nil
}
