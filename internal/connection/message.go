package connection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Reserved top-level keys the engine inspects.
const (
	keyAuthOK      = "wsok"
	keyAuthError   = "wserror"
	keyError       = "error"
	keyPing        = "ping"
	keySyncResult  = "sync_result"
	keySchedule    = "sched_current"
	authFailedKey  = "auth_failed"
	stationOffline = "station_offline"
	syncRetrying   = "sync_retrying"
)

// Message is one inbound frame: a JSON object whose top-level keys are
// kept in the order they appeared on the wire.
type Message struct {
	keys   []string
	fields map[string]json.RawMessage
}

// ParseMessage decodes a frame. Anything other than a single JSON object is
// rejected.
func ParseMessage(data []byte) (*Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("frame is not a JSON object")
	}

	m := &Message{fields: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("read value for %q: %w", key, err)
		}
		if _, dup := m.fields[key]; !dup {
			m.keys = append(m.keys, key)
		}
		m.fields[key] = raw
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read frame end: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after frame")
	}

	return m, nil
}

// Keys returns the top-level keys in wire order.
func (m *Message) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of top-level keys.
func (m *Message) Len() int {
	return len(m.keys)
}

// Has reports whether key is present.
func (m *Message) Has(key string) bool {
	_, ok := m.fields[key]
	return ok
}

// Raw returns the undecoded payload under key.
func (m *Message) Raw(key string) (json.RawMessage, bool) {
	raw, ok := m.fields[key]
	return raw, ok
}

// Decode unmarshals the payload under key into v.
func (m *Message) Decode(key string, v any) error {
	raw, ok := m.fields[key]
	if !ok {
		return fmt.Errorf("key %q not present", key)
	}
	return json.Unmarshal(raw, v)
}

// Fields returns a copy of the key/payload mapping.
func (m *Message) Fields() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// MarshalJSON re-encodes the frame preserving key order.
func (m *Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(m.fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Correlation describes where the server echoes the client's correlation id.
// Flat:   {"message_id": 7}
// Nested: {"message_id": {"message_id": 7}}
type Correlation struct {
	Field  string
	Nested bool
}

// DefaultCorrelation is the flat "message_id" echo.
var DefaultCorrelation = Correlation{Field: "message_id"}

// extract returns the echoed id, if the frame carries one.
func (c Correlation) extract(m *Message) (int64, bool) {
	raw, ok := m.fields[c.Field]
	if !ok {
		return 0, false
	}
	if c.Nested {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return 0, false
		}
		if raw, ok = inner[c.Field]; !ok {
			return 0, false
		}
	}

	var id int64
	if err := json.Unmarshal(raw, &id); err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// resultStatus is the subset of a result payload used to detect failures.
type resultStatus struct {
	Success *bool  `json:"success"`
	TLKey   string `json:"tl_key"`
	Key     string `json:"key"`
	Text    string `json:"text"`
}

// applicationError returns the failure carried by a correlated reply, or nil.
// An explicit "error" payload wins over a result with success:false.
func applicationError(m *Message) *Error {
	if raw, ok := m.fields[keyError]; ok && !isFalsy(raw) {
		var p ErrorPayload
		if err := json.Unmarshal(raw, &p); err == nil {
			return &Error{Kind: KindApplication, Key: p.MachineKey(), Text: p.Text, Payload: m.Fields()}
		}
		// A scalar error still fails the request.
		text := string(bytes.TrimSpace(raw))
		var s string
		if json.Unmarshal(raw, &s) == nil {
			text = s
		}
		return &Error{Kind: KindApplication, Text: text, Payload: m.Fields()}
	}

	for _, k := range m.keys {
		raw := m.fields[k]
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var st resultStatus
		if err := json.Unmarshal(raw, &st); err != nil {
			continue
		}
		if st.Success != nil && !*st.Success {
			key := st.TLKey
			if key == "" {
				key = st.Key
			}
			return &Error{Kind: KindApplication, Key: key, Text: st.Text, Payload: m.Fields()}
		}
	}

	return nil
}

// isFalsy reports whether an error field carries no failure: null, false,
// zero or the empty string.
func isFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}

