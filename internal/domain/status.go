package domain

import "fmt"

// Status is a team's coarse competition lifecycle stage. It is mutated only by
// admin actions and round-completion side effects, never by regular gameplay.
type Status string

const (
	StatusRegistered Status = "Registered"
	StatusRound1     Status = "Round1"
	StatusRound2     Status = "Round2"
	StatusRound3     Status = "Round3"
	StatusEliminated Status = "Eliminated"
	StatusSelected   Status = "Selected"
)

var allStatuses = map[Status]struct{}{
	StatusRegistered: {},
	StatusRound1:     {},
	StatusRound2:     {},
	StatusRound3:     {},
	StatusEliminated: {},
	StatusSelected:   {},
}

// ValidStatus reports whether s is a known competition status.
func ValidStatus(s Status) bool {
	_, ok := allStatuses[s]
	return ok
}

// RoundTransition describes the status movement applied when a round's
// selection runs: teams at Current either advance to Next or fall to Eliminated.
type RoundTransition struct {
	Current    Status
	Next       Status
	Eliminated Status
}

// roundTransitions is the declarative selection table. Round 0 is registration
// screening; rounds 1-3 are the competitive stages.
var roundTransitions = map[int]RoundTransition{
	0: {Current: StatusRegistered, Next: StatusRound1, Eliminated: StatusEliminated},
	1: {Current: StatusRound1, Next: StatusRound2, Eliminated: StatusEliminated},
	2: {Current: StatusRound2, Next: StatusRound3, Eliminated: StatusEliminated},
	3: {Current: StatusRound3, Next: StatusSelected, Eliminated: StatusEliminated},
}

// TransitionFor returns the selection transition for a round.
func TransitionFor(round int) (RoundTransition, bool) {
	tr, ok := roundTransitions[round]
	return tr, ok
}

// AnnouncedStatuses returns the statuses a team can hold after the given
// round's selection has run. The results announcement for that round is scoped
// to exactly this set.
func AnnouncedStatuses(round int) ([]Status, bool) {
	tr, ok := roundTransitions[round]
	if !ok {
		return nil, false
	}
	return []Status{tr.Next, tr.Eliminated}, true
}

// ValidateTransitions checks the selection table once at startup. A broken
// table is a programming error, so callers treat a failure as fatal.
func ValidateTransitions() error {
	for round, tr := range roundTransitions {
		for _, s := range []Status{tr.Current, tr.Next, tr.Eliminated} {
			if !ValidStatus(s) {
				return fmt.Errorf("round %d transition references unknown status %q", round, s)
			}
		}
		if tr.Current == tr.Next {
			return fmt.Errorf("round %d transition does not advance", round)
		}
		if tr.Next == tr.Eliminated {
			return fmt.Errorf("round %d transition cannot advance into elimination", round)
		}
	}
	return nil
}
