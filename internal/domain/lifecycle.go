package domain

// validTransitions is the battle lifecycle:
// pending -> accepted | declined | cancelled
// accepted -> active | cancelled
// active -> completed | cancelled
// declined, completed and cancelled are terminal. Cancellation is legal from
// any non-terminal state so a creator can withdraw an unanswered challenge.
var validTransitions = map[BattleStatus][]BattleStatus{
	BattleStatusPending:  {BattleStatusAccepted, BattleStatusDeclined, BattleStatusCancelled},
	BattleStatusAccepted: {BattleStatusActive, BattleStatusCancelled},
	BattleStatusActive:   {BattleStatusCompleted, BattleStatusCancelled},
}

// CanTransition reports whether moving a battle from one status to another is legal.
func CanTransition(from, to BattleStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new status, leaving the decision of
// whether to mutate the battle to the caller.
func Transition(from, to BattleStatus) (BattleStatus, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}

// IsTerminal reports whether no further transitions are possible.
func (s BattleStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}
