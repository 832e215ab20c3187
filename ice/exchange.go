package ice

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultExchangeWindow is how long Exchange waits for remote candidates.
const DefaultExchangeWindow = 10 * time.Second

// Signaler carries candidates to and from the remote peer.
type Signaler interface {
	// Send delivers one candidate. There is no acknowledgement.
	Send(ctx context.Context, c Candidate) error
	// Receive blocks for the next remote candidate. It returns
	// ErrEndOfCandidates once the remote peer has sent all of them.
	Receive(ctx context.Context) (Candidate, error)
}

// EndOfCandidatesSender is implemented by signalers that can tell the remote
// peer no more candidates will follow.
type EndOfCandidatesSender interface {
	SendEndOfCandidates(ctx context.Context) error
}

// Exchange sends every local candidate and collects remote ones until the
// remote signals the end, the window elapses or the signaler fails.
// Running out of time or a broken signaler is not an error: whatever
// arrived is returned. Duplicates are dropped. Only the cancellation of
// ctx itself is reported.
func Exchange(ctx context.Context, sig Signaler, locals []Candidate, window time.Duration, obs Observer) ([]Candidate, error) {
	obs = observerOrNop(obs)
	if window <= 0 {
		window = DefaultExchangeWindow
	}

	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	for _, c := range locals {
		if err := sig.Send(wctx, c); err != nil {
			obs.Warn(WarnSignaling, fmt.Errorf("send %s: %w", c, err))
		}
	}
	if eoc, ok := sig.(EndOfCandidatesSender); ok {
		if err := eoc.SendEndOfCandidates(wctx); err != nil {
			obs.Warn(WarnSignaling, fmt.Errorf("send end of candidates: %w", err))
		}
	}

	var remotes []Candidate
	for {
		c, err := sig.Receive(wctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrEndOfCandidates):
			case ctx.Err() != nil:
				return remotes, ctx.Err()
			case wctx.Err() != nil:
				if len(remotes) == 0 {
					obs.Warn(WarnExchangeTimeout, fmt.Errorf("no remote candidates within %s", window))
				}
			default:
				obs.Warn(WarnSignaling, fmt.Errorf("receive: %w", err))
			}
			return remotes, nil
		}
		if containsCandidate(remotes, c) {
			continue
		}
		remotes = append(remotes, c)
		obs.RemoteCandidate(c)
	}
}

func containsCandidate(cs []Candidate, c Candidate) bool {
	for _, x := range cs {
		if x.Equal(c) {
			return true
		}
	}
	return false
}
