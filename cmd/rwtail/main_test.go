package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/events"
)

func TestParseKeys(t *testing.T) {
	keys, err := parseKeys(" sched_current, user ,")
	if err != nil {
		t.Fatalf("parseKeys failed: %v", err)
	}
	if len(keys) != 2 || !keys[events.KeySchedCurrent] || !keys[events.KeyUser] {
		t.Errorf("keys = %v", keys)
	}

	if keys, err := parseKeys(""); err != nil || keys != nil {
		t.Errorf("parseKeys(\"\") = %v, %v", keys, err)
	}
	if _, err := parseKeys("sched_current,bogus"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, map[events.Key]bool{events.KeySchedCurrent: true, events.KeyError: true}, true)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	p.print(events.Event{Key: events.KeySchedCurrent, Payload: json.RawMessage(`{"id":5}`), ReceivedAt: at})
	p.print(events.Event{Key: events.KeyUser, Payload: json.RawMessage(`{}`), ReceivedAt: at})
	p.print(events.Event{Key: events.KeyError, Err: connection.ErrTimeout, ReceivedAt: at})

	if p.count() != 2 {
		t.Fatalf("count = %d, want 2", p.count())
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first line
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if first.Key != "sched_current" || first.Bytes != 8 || string(first.Payload) != `{"id":5}` {
		t.Errorf("first line = %+v", first)
	}
	if first.Time != "2024-01-02T03:04:05Z" {
		t.Errorf("Time = %q", first.Time)
	}

	var second line
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if second.ErrorKind != "timeout" || second.Error == "" {
		t.Errorf("second line = %+v", second)
	}
}

func TestPrinter_QuietOmitsPayload(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, nil, false)

	p.print(events.Event{Key: events.KeyUser, Payload: json.RawMessage(`{"id":1}`), ReceivedAt: time.Now()})

	if strings.Contains(buf.String(), `"payload"`) {
		t.Errorf("payload printed without verbose: %s", buf.String())
	}
}
