package ws

import "time"

// Status is the connection state machine's current state.
type Status int

const (
	// StatusDisconnected means no connection exists and none is pending.
	StatusDisconnected Status = iota

	// StatusConnecting means a connection attempt is in flight.
	StatusConnecting

	// StatusConnected means the connection is open and ready.
	StatusConnected

	// StatusReconnecting means a retry timer is armed after an abnormal
	// disconnect.
	StatusReconnecting
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ConnectionState is a snapshot of the Manager's state, published to
// state-change listeners after every mutation.
type ConnectionState struct {
	Status            Status
	LastConnectedAt   time.Time // zero until the first successful connect
	ReconnectAttempts int       // resets to 0 on connect and explicit disconnect
	LastError         string
}
