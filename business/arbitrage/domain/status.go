package domain

// Status is the opportunity lifecycle state.
type Status string

const (
	StatusDetected  Status = "detected"
	StatusAnalyzing Status = "analyzing"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

var transitions = map[Status][]Status{
	StatusDetected:  {StatusAnalyzing, StatusExpired},
	StatusAnalyzing: {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved:  {StatusExecuting, StatusRejected, StatusExpired},
	StatusExecuting: {StatusCompleted, StatusFailed, StatusExpired},
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is a lifecycle edge.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
