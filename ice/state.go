package ice

import "fmt"

// PairState is the checking state of a candidate pair.
type PairState int

const (
	StateFrozen PairState = iota
	StateWaiting
	StateInProgress
	StateSucceeded
	StateFailed
)

func (s PairState) String() string {
	switch s {
	case StateFrozen:
		return "frozen"
	case StateWaiting:
		return "waiting"
	case StateInProgress:
		return "in-progress"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition leaves s.
func (s PairState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// next lists the states reachable from each state.
var next = map[PairState][]PairState{
	StateFrozen:     {StateWaiting},
	StateWaiting:    {StateInProgress},
	StateInProgress: {StateSucceeded, StateFailed},
}

func canTransition(from, to PairState) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
