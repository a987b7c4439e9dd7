package valueobject

type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnFailed       ConnectionState = "failed"
)

// String returns the string representation of the state
func (s ConnectionState) String() string {
	return string(s)
}

// IsConnected returns true if billing operations may be issued
func (s ConnectionState) IsConnected() bool {
	return s == ConnConnected
}

// CanConnect returns true if a connect attempt may start from this state
func (s ConnectionState) CanConnect() bool {
	return s == ConnDisconnected || s == ConnFailed
}
