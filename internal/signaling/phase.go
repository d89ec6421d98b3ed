package signaling

// Phase is the negotiation state of a peer session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOffered
	PhaseAnswered
	PhaseConnected
	PhaseEnded
	PhaseFailed
)

var phaseNames = [...]string{"IDLE", "OFFERED", "ANSWERED", "CONNECTED", "ENDED", "FAILED"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseEnded || p == PhaseFailed
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
