package connection

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Socket-level errors returned by Client.
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Kind classifies a failure surfaced by the engine.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthenticationFailed
	KindDisconnected
	KindTimeout
	KindApplication
	KindTransport
	KindProtocol
	KindUsage
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindDisconnected:
		return "disconnected"
	case KindTimeout:
		return "timeout"
	case KindApplication:
		return "application_error"
	case KindTransport:
		return "transport_error"
	case KindProtocol:
		return "protocol_error"
	case KindUsage:
		return "usage_error"
	default:
		return "unknown"
	}
}

// Error is the single error type produced by the engine.
//
// Key and Text come from the server for application and authentication
// failures. Payload holds the raw inbound frame for application errors and
// transport errors that were triggered by a frame.
type Error struct {
	Kind    Kind
	Key     string
	Text    string
	Payload map[string]json.RawMessage
	Err     error
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed}
	ErrDisconnected         = &Error{Kind: KindDisconnected}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrApplication          = &Error{Kind: KindApplication}
	ErrTransport            = &Error{Kind: KindTransport}
	ErrProtocol             = &Error{Kind: KindProtocol}
	ErrUsage                = &Error{Kind: KindUsage}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Key != "" {
		msg += " [" + e.Key + "]"
	}
	if e.Text != "" {
		msg += ": " + e.Text
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, key, text string, cause error) *Error {
	return &Error{Kind: kind, Key: key, Text: text, Err: cause}
}

func usageErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindUsage, Text: fmt.Sprintf(format, args...)}
}

// ErrorPayload is the server's error shape: {code, tl_key, text}.
// Older frames carry the machine key under "key" instead of "tl_key".
type ErrorPayload struct {
	Code  int    `json:"code"`
	TLKey string `json:"tl_key,omitempty"`
	Key   string `json:"key,omitempty"`
	Text  string `json:"text"`
}

// MachineKey returns tl_key, falling back to key.
func (p ErrorPayload) MachineKey() string {
	if p.TLKey != "" {
		return p.TLKey
	}
	return p.Key
}
