package constants

// Advisory lock identifiers. MigrationLock serializes schema bootstrap
// across instances; SchedulerLock keeps poll cycles from overlapping.
const (
	MigrationLock = iota
	SchedulerLock
)

var Locks = []int{
	MigrationLock,
	SchedulerLock,
}
