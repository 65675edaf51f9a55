package connection

import (
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/rainwave-sync/internal/auth"
)

// Protocol defaults.
const (
	DefaultRequestTimeout    = 4 * time.Second
	DefaultReconnectDelay    = 500 * time.Millisecond
	DefaultKeepaliveInterval = 45 * time.Second
	DefaultConnectTimeout    = 3 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultSentWindow        = 10
	DefaultURL               = "wss://rainwave.cc/api4/websocket/"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full socket address including the station segment
	HandshakeTimeout time.Duration // Dial + upgrade budget
	PingInterval     time.Duration // WebSocket-level pings; 0 disables
	PingTimeout      time.Duration // Max time without inbound traffic before the socket is stale; 0 disables
	WriteTimeout     time.Duration // Write deadline for sends
	ReadLimit        int64         // Max inbound frame size; 0 keeps the library default
	BufferSize       int           // Message channel buffer size
	UserAgent        string        // Sent on the upgrade request when set
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     DefaultWriteTimeout,
		ReadLimit:        64 << 20,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL         string           // Base address; the station id is appended as a path segment
	Station     int              // Station identifier sent as "sid" on every frame
	Credentials auth.Credentials // user_id + key for the auth frame

	RequestTimeout    time.Duration // Per in-flight request reply budget
	ReconnectDelay    time.Duration // Fixed delay before an automatic reconnect
	KeepaliveInterval time.Duration // Liveness probe cadence while ready
	ConnectTimeout    time.Duration // Dial + authenticate budget per attempt
	SentWindow        int           // Max tracked sent-but-unanswered requests
	Correlation       Correlation   // Where replies echo the correlation id

	Client ClientConfig // Socket settings; URL is filled in by the Manager

	// OnSocketError, if set, is called for every transport error.
	OnSocketError func(error)
}

// DefaultManagerConfig returns the protocol defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		URL:               DefaultURL,
		RequestTimeout:    DefaultRequestTimeout,
		ReconnectDelay:    DefaultReconnectDelay,
		KeepaliveInterval: DefaultKeepaliveInterval,
		ConnectTimeout:    DefaultConnectTimeout,
		SentWindow:        DefaultSentWindow,
		Correlation:       DefaultCorrelation,
		Client:            DefaultClientConfig(),
	}
}

// Endpoint returns the socket address for the configured station.
func (c ManagerConfig) Endpoint() string {
	return strings.TrimSuffix(c.URL, "/") + "/" + strconv.Itoa(c.Station)
}

// State is the Connection Manager's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State            State
	Queued           int   // Requests waiting to be sent
	InFlight         int   // Requests in the Sent window
	LastMessageID    int64 // Most recently assigned correlation id
	ScheduleID       int64 // Last schedule id seen in sched_current
	Connects         int64 // Connect attempts, including reconnects
	MessagesReceived int64
}
