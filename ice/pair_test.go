package ice_test

import (
	"net"
	"testing"

	"github.com/aethiopicuschan/icelab/ice"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	all := []ice.PairState{ice.StateFrozen, ice.StateWaiting, ice.StateInProgress, ice.StateSucceeded, ice.StateFailed}
	allowed := map[[2]ice.PairState]bool{
		{ice.StateFrozen, ice.StateWaiting}:       true,
		{ice.StateWaiting, ice.StateInProgress}:   true,
		{ice.StateInProgress, ice.StateSucceeded}: true,
		{ice.StateInProgress, ice.StateFailed}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]ice.PairState{from, to}], ice.TestCanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, ice.StateSucceeded.Terminal())
	assert.True(t, ice.StateFailed.Terminal())
	assert.False(t, ice.StateInProgress.Terminal())
}

func TestPair_Transitions(t *testing.T) {
	t.Parallel()

	newPair := func() *ice.Pair {
		return ice.NewPair(mustHost(t, "1", 1000, 65535), mustHost(t, "r", 2000, 65535))
	}

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		p := newPair()
		assert.Equal(t, ice.StateFrozen, p.State())
		assert.NoError(t, p.Unfreeze())
		assert.NoError(t, p.TestStart())
		assert.NoError(t, p.TestSucceed())
		assert.Equal(t, ice.StateSucceeded, p.State())
		assert.NoError(t, p.Nominate())
		assert.True(t, p.IsNominated())
	})

	t.Run("cannot skip states", func(t *testing.T) {
		t.Parallel()

		p := newPair()
		assert.ErrorIs(t, p.TestStart(), ice.ErrInvalidTransition)
		assert.ErrorIs(t, p.TestSucceed(), ice.ErrInvalidTransition)
		assert.ErrorIs(t, p.TestFail(), ice.ErrInvalidTransition)
		assert.Equal(t, ice.StateFrozen, p.State())
	})

	t.Run("terminal states are final", func(t *testing.T) {
		t.Parallel()

		p := newPair()
		assert.NoError(t, p.Unfreeze())
		assert.NoError(t, p.TestStart())
		assert.NoError(t, p.TestFail())
		assert.ErrorIs(t, p.TestSucceed(), ice.ErrInvalidTransition)
		assert.ErrorIs(t, p.Unfreeze(), ice.ErrInvalidTransition)
		assert.Equal(t, ice.StateFailed, p.State())
	})

	t.Run("only succeeded pairs are nominated", func(t *testing.T) {
		t.Parallel()

		p := newPair()
		assert.ErrorIs(t, p.Nominate(), ice.ErrInvalidTransition)
		assert.NoError(t, p.Unfreeze())
		assert.ErrorIs(t, p.Nominate(), ice.ErrInvalidTransition)
		assert.False(t, p.IsNominated())
	})
}

func TestPair_String(t *testing.T) {
	t.Parallel()

	p := ice.NewPair(mustHost(t, "1", 1000, 65535), mustHost(t, "r", 2000, 65535))
	assert.Equal(t,
		"(local) host 127.0.0.1:1000 prio=2130706431 <-> (remote) host 127.0.0.1:2000 prio=2130706431 [frozen]",
		p.String())
}

func TestFormPairs(t *testing.T) {
	t.Parallel()

	t.Run("every combination sorted", func(t *testing.T) {
		t.Parallel()

		l0 := mustHost(t, "1", 1000, ice.LocalPreference(0))
		l1 := mustHost(t, "2", 1001, ice.LocalPreference(1))
		lr, err := ice.NewServerReflexiveCandidate("100", l0, net.IPv4(198, 51, 100, 1), 3000)
		assert.NoError(t, err)
		r0 := mustHost(t, "1", 2000, ice.LocalPreference(0))
		r1 := mustHost(t, "2", 2001, ice.LocalPreference(3))

		pairs := ice.FormPairs([]ice.Candidate{lr, l1, l0}, []ice.Candidate{r1, r0})
		assert.Len(t, pairs, 6)
		for i, p := range pairs {
			assert.Equal(t, ice.StateFrozen, p.State())
			assert.Equal(t, ice.PairPriority(p.Local.Priority(), p.Remote.Priority()), p.Priority())
			if i > 0 {
				assert.GreaterOrEqual(t, pairs[i-1].Priority(), p.Priority())
			}
		}
		assert.True(t, pairs[0].Local.Equal(l0))
		assert.True(t, pairs[0].Remote.Equal(r0))
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, ice.FormPairs(nil, []ice.Candidate{mustHost(t, "1", 1, 1)}))
		assert.Empty(t, ice.FormPairs([]ice.Candidate{mustHost(t, "1", 1, 1)}, nil))
		assert.NotNil(t, ice.FormPairs(nil, nil))
	})

	t.Run("sort is idempotent", func(t *testing.T) {
		t.Parallel()

		pairs := ice.FormPairs(
			[]ice.Candidate{mustHost(t, "1", 1, 10), mustHost(t, "2", 2, 10)},
			[]ice.Candidate{mustHost(t, "1", 3, 10), mustHost(t, "2", 4, 5)},
		)
		before := make([]*ice.Pair, len(pairs))
		copy(before, pairs)
		ice.SortPairs(pairs)
		assert.Equal(t, before, pairs)
	})
}

func TestNominate(t *testing.T) {
	t.Parallel()

	settle := func(p *ice.Pair, ok bool) {
		assert.NoError(t, p.Unfreeze())
		assert.NoError(t, p.TestStart())
		if ok {
			assert.NoError(t, p.TestSucceed())
		} else {
			assert.NoError(t, p.TestFail())
		}
	}

	t.Run("first succeeded in priority order", func(t *testing.T) {
		t.Parallel()

		pairs := ice.FormPairs(
			[]ice.Candidate{mustHost(t, "1", 1000, 65535)},
			[]ice.Candidate{mustHost(t, "1", 2000, 300), mustHost(t, "2", 2001, 200), mustHost(t, "3", 2002, 100)},
		)
		settle(pairs[0], false)
		settle(pairs[1], true)
		settle(pairs[2], true)

		got, err := ice.TestNominate(pairs)
		assert.NoError(t, err)
		assert.Same(t, pairs[1], got)
		assert.False(t, pairs[2].IsNominated())

		again, err := ice.TestNominate(pairs)
		assert.NoError(t, err)
		assert.Same(t, got, again)
	})

	t.Run("none succeeded", func(t *testing.T) {
		t.Parallel()

		pairs := ice.FormPairs(
			[]ice.Candidate{mustHost(t, "1", 1000, 65535)},
			[]ice.Candidate{mustHost(t, "1", 2000, 300)},
		)
		settle(pairs[0], false)

		_, err := ice.TestNominate(pairs)
		assert.ErrorIs(t, err, ice.ErrNoConnectivity)
	})
}
