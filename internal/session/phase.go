package session

// Phase is the lifecycle position of one mounted interview session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreflight
	PhaseNegotiating
	PhaseLive
	PhaseTerminating
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreflight:
		return "preflight"
	case PhaseNegotiating:
		return "negotiating"
	case PhaseLive:
		return "live"
	case PhaseTerminating:
		return "terminating"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}
