package lock

// DistributedLockManager guards units of work that must run on at most one
// instance at a time, such as schema migration and the scheduler poll cycle.
type DistributedLockManager interface {
	Acquire(lockID int) error
	Release(lockID int) error
}
