package ice

import (
	"fmt"

	"github.com/pion/logging"
)

// Warning classifies a non-fatal condition that was absorbed.
type Warning int

const (
	WarnInterfaceBind Warning = iota + 1
	WarnDiscovery
	WarnSignaling
	WarnExchangeTimeout
	WarnProbe
)

func (w Warning) String() string {
	switch w {
	case WarnInterfaceBind:
		return "interface-bind"
	case WarnDiscovery:
		return "discovery"
	case WarnSignaling:
		return "signaling"
	case WarnExchangeTimeout:
		return "exchange-timeout"
	case WarnProbe:
		return "probe"
	default:
		return fmt.Sprintf("warning(%d)", int(w))
	}
}

// Observer receives progress events. Implementations must be safe for
// concurrent use: probe events arrive from several goroutines.
type Observer interface {
	CandidateGathered(c Candidate)
	RemoteCandidate(c Candidate)
	PairStateChanged(p *Pair, from, to PairState)
	Nominated(p *Pair)
	Warn(w Warning, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) CandidateGathered(Candidate)                  {}
func (NopObserver) RemoteCandidate(Candidate)                    {}
func (NopObserver) PairStateChanged(*Pair, PairState, PairState) {}
func (NopObserver) Nominated(*Pair)                              {}
func (NopObserver) Warn(Warning, error)                          {}

// LogObserver writes events to a leveled logger.
type LogObserver struct {
	log logging.LeveledLogger
}

// NewLogObserver returns an Observer logging to log.
func NewLogObserver(log logging.LeveledLogger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) CandidateGathered(c Candidate) {
	o.log.Infof("gathered %s", c)
}

func (o *LogObserver) RemoteCandidate(c Candidate) {
	o.log.Infof("received remote %s", c)
}

func (o *LogObserver) PairStateChanged(p *Pair, from, to PairState) {
	o.log.Debugf("pair %s: %s -> %s", p, from, to)
}

func (o *LogObserver) Nominated(p *Pair) {
	o.log.Infof("nominated %s", p)
}

func (o *LogObserver) Warn(w Warning, err error) {
	o.log.Warnf("%s: %v", w, err)
}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}
