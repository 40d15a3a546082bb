package domain

// ConnectionState is the lifecycle state of one consultation session.
// Keep values stable because they are reported to the shell's consumer.
type ConnectionState int32

const (
	StateIdle ConnectionState = iota
	StateAcquiringToken
	StateAcquiringMedia
	StateConnecting
	StateConnected
	StateEnding
	StateTerminated
	StateErrored
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringToken:
		return "acquiring_token"
	case StateAcquiringMedia:
		return "acquiring_media"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateEnding:
		return "ending"
	case StateTerminated:
		return "terminated"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s ConnectionState) Terminal() bool {
	return s == StateTerminated || s == StateErrored
}
