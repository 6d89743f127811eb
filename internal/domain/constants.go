package domain

// Status is the processing state of a job record.
type Status string

// Job status constants
const (
	JobStatusPending    Status = "PENDING"
	JobStatusProcessing Status = "PROCESSING"
	JobStatusCompleted  Status = "COMPLETED"
	JobStatusFailed     Status = "FAILED"
)

// transitions lists every allowed status change. Terminal states have no entry.
var transitions = map[Status][]Status{
	JobStatusPending:    {JobStatusProcessing},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions can happen from s.
func (s Status) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
