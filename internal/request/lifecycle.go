package request

import (
	"fmt"

	"github.com/descanso-app/descanso/internal/shared"
)

// Decision is a manager's verdict on a pending request.
type Decision string

const (
	// DecisionApprove moves a pending request to approved.
	DecisionApprove Decision = "approve"
	// DecisionReject moves a pending request to rejected.
	DecisionReject Decision = "reject"
)

// Target returns the status a decision transitions into.
func (d Decision) Target() (Status, error) {
	switch d {
	case DecisionApprove:
		return StatusApproved, nil
	case DecisionReject:
		return StatusRejected, nil
	}
	return "", fmt.Errorf("%w: decision %q", shared.ErrValidation, d)
}

// transitions lists the legal from→to pairs. Same-state transitions are
// idempotent no-ops. There is no way back to pending once left.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusNotified},
}

// CanTransition reports whether from→to is a legal lifecycle move.
// A same-state transition is always allowed and means "no change".
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Authorize checks whether the actor may trigger the from→to transition.
// Manager decisions need the manager role; the hand-off to notified is
// reserved for the system actor. Role is the only attribute consulted.
func Authorize(actor shared.Identity, from, to Status) error {
	if from == to {
		return nil
	}
	switch {
	case from == StatusPending && (to == StatusApproved || to == StatusRejected):
		if actor.Role != shared.RoleManager {
			return fmt.Errorf("request: transition %s→%s: %w", from, to, shared.ErrUnauthorized)
		}
	case from == StatusApproved && to == StatusNotified:
		if actor.Role != shared.RoleSystem {
			return fmt.Errorf("request: transition %s→%s: %w", from, to, shared.ErrUnauthorized)
		}
	default:
		return fmt.Errorf("%w: transition %s→%s", shared.ErrValidation, from, to)
	}
	return nil
}
