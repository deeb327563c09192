package channel

// Status is the connection state reported by a Manager
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusOpen         Status = "open"
	StatusReconnecting Status = "reconnecting"
	StatusClosed       Status = "closed"

	// StatusDisconnected is terminal: reconnect attempts are exhausted and
	// only an explicit Connect leaves it
	StatusDisconnected Status = "disconnected"
)
