package ice

// DefaultComponent is the component id of every candidate; only one
// component is ever negotiated.
const DefaultComponent = 1

const (
	maxLocalPreference  = 65535
	localPreferenceStep = 1000
)

// Priority computes a candidate priority:
//
//	(typePreference << 24) + (localPreference << 8) + (256 - component)
func Priority(kind Kind, localPreference uint16, component int) uint32 {
	return kind.Preference()<<24 + uint32(localPreference)<<8 + uint32(256-component)
}

// LocalPreference models interface preference order: 65535 for the first
// interface, 1000 less for each one after it, never below zero.
func LocalPreference(ifaceIndex int) uint16 {
	pref := maxLocalPreference - localPreferenceStep*ifaceIndex
	if pref < 0 {
		return 0
	}
	return uint16(pref)
}

// PairPriority computes the priority of a pair from the priorities of its
// local and remote candidates:
//
//	2^32*min(L,R) + 2*max(L,R) + (L > R ? 1 : 0)
func PairPriority(local, remote uint32) uint64 {
	g, d := uint64(min(local, remote)), uint64(max(local, remote))
	var tie uint64
	if local > remote {
		tie = 1
	}
	return g<<32 + d<<1 + tie
}
