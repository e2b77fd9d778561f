package state

import "fmt"

// PivotState tracks how far the pivot engine has progressed. Everything up to
// and including Prepared can be abandoned safely; the transition to Committed
// is the single irreversible operation of the whole program.
type PivotState int

const (
	AwaitingOperator PivotState = iota
	SessionEstablished
	Prepared
	Committed
	ReexecTriggered
)

func (p PivotState) String() string {
	switch p {
	case AwaitingOperator:
		return "AWAITING_OPERATOR"
	case SessionEstablished:
		return "SESSION_ESTABLISHED"
	case Prepared:
		return "PREPARED"
	case Committed:
		return "COMMITTED"
	case ReexecTriggered:
		return "REEXEC_TRIGGERED"
	default:
		return fmt.Sprintf("PivotState(%d)", int(p))
	}
}

// transition advances the machine by exactly one step. Skipping states or
// moving backwards is a programming error surfaced as a failure, never
// papered over: a commit from the wrong state must not happen.
func (s *State) transition(next PivotState) error {
	if next != s.pivot+1 {
		return fmt.Errorf("invalid pivot transition %s -> %s", s.pivot, next)
	}
	s.pivot = next
	return nil
}

// PivotStatus exposes the current state, mostly for logging and tests.
func (s *State) PivotStatus() PivotState {
	return s.pivot
}
