package backscan

import "github.com/ava-labs/record-indexer/pkg/types"

// StopReason tells why a scan ended.
type StopReason int

const (
	StopNone StopReason = iota
	StopTarget
	StopCutoff
	StopConnection
	StopExhausted
)

func (r StopReason) String() string {
	switch r {
	case StopTarget:
		return "target reached"
	case StopCutoff:
		return "cutoff reached"
	case StopConnection:
		return "connection point found"
	case StopExhausted:
		return "range exhausted"
	default:
		return "none"
	}
}

// StopPolicy holds the stop conditions evaluated after each chunk. The cutoff
// and exhaustion conditions belong to the scanner since they depend on block
// heights rather than on accumulated records.
type StopPolicy struct {
	// Target stops the scan once found+Baseline records are accumulated.
	// 0 disables it.
	Target int
	// Baseline counts records already held before the run.
	Baseline int
	// Known holds the hashes behind Baseline. Found records with a known hash
	// are already counted by Baseline and do not count again.
	Known types.HashSet
	// ConnectionPoint stops the scan once a persisted record is seen again.
	ConnectionPoint bool
}

// Check reports the first satisfied condition for the session.
func (p StopPolicy) Check(s *Session) (StopReason, bool) {
	if p.ConnectionPoint && s.ConnectionFound {
		return StopConnection, true
	}
	if p.Target > 0 && p.newFound(s)+p.Baseline >= p.Target {
		return StopTarget, true
	}
	return StopNone, false
}

func (p StopPolicy) newFound(s *Session) int {
	if len(p.Known) == 0 {
		return len(s.Found)
	}
	n := 0
	for _, r := range s.Found {
		if !p.Known.Has(r.TransactionHash) {
			n++
		}
	}
	return n
}
