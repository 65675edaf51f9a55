package connection

// dispatcher holds the Queue (not yet sent) and the Sent window (sent,
// awaiting a correlated reply). It has no locking of its own; the Manager
// owns it and only touches it with m.mu held.
type dispatcher struct {
	queue      []*Request
	sent       []*Request
	windowSize int
	lastID     int64
	busy       bool
}

func newDispatcher(windowSize int) *dispatcher {
	if windowSize < 1 {
		windowSize = 1
	}
	return &dispatcher{windowSize: windowSize}
}

// enqueue appends r. Stateless requests, and every request while the
// connection is not ready, replace any queued request with the same action;
// the replaced requests are returned so the caller can settle them.
func (d *dispatcher) enqueue(r *Request, ready bool) (superseded []*Request) {
	if r.Stateless() || !ready {
		kept := d.queue[:0]
		for _, q := range d.queue {
			if q.Action == r.Action {
				superseded = append(superseded, q)
				continue
			}
			kept = append(kept, q)
		}
		for i := len(kept); i < len(d.queue); i++ {
			d.queue[i] = nil
		}
		d.queue = kept
	}
	d.queue = append(d.queue, r)
	return superseded
}

// pop removes the head of the queue. An empty queue marks the dispatcher idle.
func (d *dispatcher) pop() *Request {
	if len(d.queue) == 0 {
		d.busy = false
		return nil
	}
	r := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return r
}

// pushFront puts r back at the head of the queue.
func (d *dispatcher) pushFront(r *Request) {
	d.queue = append([]*Request{r}, d.queue...)
}

// assign gives r the next correlation id and makes room for it in the Sent
// window. Entries pushed out of the window are returned.
func (d *dispatcher) assign(r *Request) (evicted []*Request) {
	d.lastID++
	r.MessageID = d.lastID

	for len(d.sent) >= d.windowSize {
		evicted = append(evicted, d.sent[0])
		d.sent[0] = nil
		d.sent = d.sent[1:]
	}
	return evicted
}

// track appends r to the Sent window.
func (d *dispatcher) track(r *Request) {
	d.sent = append(d.sent, r)
}

// match removes and returns the sent request with the given id.
func (d *dispatcher) match(id int64) *Request {
	for i, r := range d.sent {
		if r.MessageID == id {
			d.sent = append(d.sent[:i], d.sent[i+1:]...)
			return r
		}
	}
	return nil
}

// untrack removes r from the Sent window.
func (d *dispatcher) untrack(r *Request) bool {
	for i, s := range d.sent {
		if s == r {
			d.sent = append(d.sent[:i], d.sent[i+1:]...)
			return true
		}
	}
	return false
}

// dequeue removes r from the queue.
func (d *dispatcher) dequeue(r *Request) bool {
	for i, q := range d.queue {
		if q == r {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (d *dispatcher) drainSent() []*Request {
	out := d.sent
	d.sent = nil
	return out
}

func (d *dispatcher) drainQueue() []*Request {
	out := d.queue
	d.queue = nil
	return out
}

func (d *dispatcher) queued() int   { return len(d.queue) }
func (d *dispatcher) inFlight() int { return len(d.sent) }
