package agent

// ConnState is the agent's view of its link to the host.
type ConnState int

const (
	Disconnected ConnState = iota
	Connected
	AwaitingResponse
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case AwaitingResponse:
		return "awaiting_response"
	default:
		return "unknown"
	}
}
