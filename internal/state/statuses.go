package state

// InstanceStatus is the lifecycle status of a job instance. An instance is
// created as queued by the scheduler and moved out of queued only by the
// dispatcher, except for an explicit operator restart of a failed instance.
type InstanceStatus string

const (
	StatusQueued    InstanceStatus = "queued"
	StatusRunning   InstanceStatus = "running"
	StatusCompleted InstanceStatus = "completed"
	StatusFailed    InstanceStatus = "failed"
)

func (s InstanceStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known lifecycle statuses.
func (s InstanceStatus) IsValid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is expected for s.
func (s InstanceStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var AllStatuses = []InstanceStatus{
	StatusQueued,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
}

type Transition struct {
	From InstanceStatus
	To   InstanceStatus
}

// ValidTransitions is the closed set of legal status moves.
// failed -> queued is the operator restart path; completed is final.
var ValidTransitions = []Transition{
	{From: StatusQueued, To: StatusRunning},
	{From: StatusQueued, To: StatusFailed},
	{From: StatusRunning, To: StatusCompleted},
	{From: StatusRunning, To: StatusFailed},
	{From: StatusFailed, To: StatusQueued},
}

func IsValidTransition(from, to InstanceStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
