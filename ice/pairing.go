package ice

import (
	"fmt"
	"slices"
)

// FormPairs combines every local candidate with every remote candidate of
// the same transport. Pairs start frozen and come back sorted by pair
// priority, highest first.
func FormPairs(locals, remotes []Candidate) []*Pair {
	pairs := make([]*Pair, 0, len(locals)*len(remotes))
	for _, l := range locals {
		for _, r := range remotes {
			if l.Transport() != r.Transport() || l.Component() != r.Component() {
				continue
			}
			pairs = append(pairs, NewPair(l, r))
		}
	}
	SortPairs(pairs)
	return pairs
}

// SortPairs orders pairs by priority, highest first. Equal priorities keep
// their relative order.
func SortPairs(pairs []*Pair) {
	slices.SortStableFunc(pairs, func(a, b *Pair) int {
		switch {
		case a.priority > b.priority:
			return -1
		case a.priority < b.priority:
			return 1
		}
		return 0
	})
}

// nominate selects the first succeeded pair in priority order. If a pair
// is already nominated it is returned unchanged.
func nominate(pairs []*Pair) (*Pair, error) {
	ordered := slices.Clone(pairs)
	SortPairs(ordered)

	for _, p := range ordered {
		if p.nominated {
			return p, nil
		}
	}
	for _, p := range ordered {
		if p.state != StateSucceeded {
			continue
		}
		if err := p.Nominate(); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %d pairs checked", ErrNoConnectivity, len(pairs))
}
