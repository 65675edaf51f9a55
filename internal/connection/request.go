package connection

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rickgao/rainwave-sync/internal/auth"
)

// Stateless actions are liveness probes: never correlated, never retried.
const (
	ActionPing = "ping"
	ActionPong = "pong"
	ActionAuth = auth.ActionAuth

	actionCheckSchedule = "check_sched_current_id"
)

// Params are the scalar fields of an outbound frame.
type Params map[string]any

// Result is the terminal outcome of a Request.
// Stateless requests resolve with a nil Message once written.
type Result struct {
	Message *Message
	Err     error
}

// Request is one pending call. It is owned by the dispatcher from Enqueue
// until it settles; MessageID is assigned on every dispatch.
type Request struct {
	Action     string
	Params     Params
	MessageID  int64
	EnqueuedAt time.Time

	done    chan Result
	settled bool
	timer   *time.Timer
}

// NewRequest builds a descriptor for action.
func NewRequest(action string, params Params) *Request {
	return &Request{
		Action: action,
		Params: params,
		done:   make(chan Result, 1),
	}
}

// Stateless reports whether the action is a liveness probe.
func (r *Request) Stateless() bool {
	return r.Action == ActionPing || r.Action == ActionPong
}

// Done delivers exactly one Result.
func (r *Request) Done() <-chan Result {
	return r.done
}

// Wait blocks until the request settles or ctx ends.
func (r *Request) Wait(ctx context.Context) (*Message, error) {
	select {
	case res := <-r.done:
		return res.Message, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Request) resolve(m *Message) bool {
	if r.settled {
		return false
	}
	r.settled = true
	r.stopTimer()
	r.done <- Result{Message: m}
	return true
}

func (r *Request) reject(err error) bool {
	if r.settled {
		return false
	}
	r.settled = true
	r.stopTimer()
	r.done <- Result{Err: err}
	return true
}

func (r *Request) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// frame encodes {...params, sid, action, <field>?}.
func (r *Request) frame(sid int, field string) ([]byte, error) {
	out := make(map[string]any, len(r.Params)+3)
	for k, v := range r.Params {
		out[k] = v
	}
	out["sid"] = sid
	out["action"] = r.Action
	if r.MessageID > 0 {
		out[field] = r.MessageID
	}
	return json.Marshal(out)
}
