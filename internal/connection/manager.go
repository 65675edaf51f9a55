package connection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/rainwave-sync/internal/events"
)

// Manager owns the socket to one station, drives the connect/authenticate/
// ready/reconnect state machine, dispatches queued requests and fans every
// inbound frame out to the Bus.
//
// All engine state is guarded by mu. Bus publishes and socket closes are
// collected while mu is held and run after it is released, so subscribers
// may call back into the Manager. The goroutine that releases mu first runs
// the whole backlog, so any method, Enqueue and Call included, may return
// only after subscriber callbacks queued by other goroutines have run.
type Manager struct {
	cfg    ManagerConfig
	bus    *events.Bus
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	gen         uint64 // bumped on every connect and close; stale callbacks compare against it
	client      Client
	pumpStop    chan struct{}
	staysClosed bool
	retrying    bool // "sync_retrying" published and not yet cleared
	waiters     []chan error
	disp        *dispatcher

	connectTimer   *time.Timer
	reconnectTimer *time.Timer
	livenessTimer  *time.Timer
	keepalive      *keepalive

	scheduleID int64
	connects   int64
	received   int64

	deferred []func()
	outbox   []func()
	flushing bool
}

// NewManager creates a Manager. A nil bus gets a private one.
func NewManager(cfg ManagerConfig, bus *events.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = events.NewBus(logger)
	}
	cfg = applyManagerDefaults(cfg)

	return &Manager{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With("component", "connection", "station", cfg.Station),
		disp:   newDispatcher(cfg.SentWindow),
	}
}

func applyManagerDefaults(cfg ManagerConfig) ManagerConfig {
	def := DefaultManagerConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = def.KeepaliveInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.SentWindow <= 0 {
		cfg.SentWindow = def.SentWindow
	}
	if cfg.Correlation.Field == "" {
		cfg.Correlation = def.Correlation
	}
	if cfg.Client.BufferSize <= 0 {
		cfg.Client.BufferSize = def.Client.BufferSize
	}
	if cfg.Client.HandshakeTimeout <= 0 {
		cfg.Client.HandshakeTimeout = def.Client.HandshakeTimeout
	}
	if cfg.Client.WriteTimeout <= 0 {
		cfg.Client.WriteTimeout = def.Client.WriteTimeout
	}
	return cfg
}

// Bus returns the bus the Manager publishes to.
func (m *Manager) Bus() *events.Bus {
	return m.bus
}

// Start connects and authenticates. It returns nil once the connection is
// Ready, an AuthenticationFailed error if the server rejects the
// credentials, or a Disconnected error if the socket closes first. Calling
// Start while a connect is already in progress joins that attempt.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateReady:
		m.unlock()
		return nil
	case StateConnecting, StateAuthenticating:
	default:
		m.staysClosed = false
		m.connect()
	}

	ch := make(chan error, 1)
	m.waiters = append(m.waiters, ch)
	m.unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		m.mu.Lock()
		for i, w := range m.waiters {
			if w == ch {
				m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
				break
			}
		}
		m.unlock()
		select {
		case err := <-ch:
			return err
		default:
			return ctx.Err()
		}
	}
}

// Stop closes the socket and stops reconnecting. Sent and queued requests
// are rejected with Disconnected. Stop on a disconnected Manager is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateDisconnected && m.client == nil {
		m.unlock()
		return nil
	}

	m.logger.Info("stopping connection")
	m.staysClosed = true
	cause := newError(KindDisconnected, "", "connection stopped", nil)

	c := m.detach()
	m.teardown(cause)
	m.rejectQueued(cause)
	m.settleWaiters(cause)
	m.setState(StateDisconnected)
	m.unlock()

	if c == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		if err := c.Close(); err != nil {
			m.logger.Debug("socket close", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("connection stop timed out")
		return ctx.Err()
	}
}

// Call enqueues action and waits for its correlated reply. When ctx ends
// first the request is withdrawn and ctx.Err() is returned.
func (m *Manager) Call(ctx context.Context, action string, params Params) (*Message, error) {
	if action == "" {
		return nil, usageErrorf("empty action")
	}
	if action == ActionAuth {
		return nil, usageErrorf("%q is sent by the connection itself", ActionAuth)
	}

	r := NewRequest(action, params)
	m.Enqueue(r)

	msg, err := r.Wait(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return m.abandon(r, err)
	}
	return msg, err
}

// Enqueue hands r to the dispatcher. The outcome is delivered on r.Done().
// The caller may end up delivering pending Bus events before it returns.
func (m *Manager) Enqueue(r *Request) {
	m.mu.Lock()
	defer m.unlock()
	m.enqueue(r)
}

// Transmit writes one frame without correlation, bypassing the queue.
func (m *Manager) Transmit(action string, params Params) error {
	m.mu.Lock()
	defer m.unlock()

	if m.client == nil || !m.client.IsConnected() {
		return usageErrorf("transmit %q: no open socket", action)
	}
	return m.write(NewRequest(action, params))
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns current connection statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:            m.state,
		Queued:           m.disp.queued(),
		InFlight:         m.disp.inFlight(),
		LastMessageID:    m.disp.lastID,
		ScheduleID:       m.scheduleID,
		Connects:         m.connects,
		MessagesReceived: m.received,
	}
}

// unlock releases mu and runs the work collected while it was held.
// Batches run in the order mu was released, on whichever goroutine is
// already flushing, so events reach the Bus in state-machine order even
// when a subscriber calls back into the Manager.
func (m *Manager) unlock() {
	m.outbox = append(m.outbox, m.deferred...)
	m.deferred = nil
	if m.flushing {
		m.mu.Unlock()
		return
	}

	m.flushing = true
	for len(m.outbox) > 0 {
		batch := m.outbox
		m.outbox = nil
		m.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		m.mu.Lock()
	}
	m.flushing = false
	m.mu.Unlock()
}

func (m *Manager) later(fn func()) {
	m.deferred = append(m.deferred, fn)
}

func (m *Manager) emit(key events.Key, payload json.RawMessage, err error) {
	e := events.Event{Key: key, Payload: payload, Err: err, ReceivedAt: time.Now()}
	m.later(func() { m.bus.Publish(e) })
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("state changed", "from", m.state, "to", s)
	m.state = s
	m.emit(events.KeyState, lifecycle(map[string]string{"state": s.String()}), nil)
}

// connect opens a new socket. Called with mu held.
func (m *Manager) connect() {
	m.stopTimer(&m.reconnectTimer)
	m.gen++
	gen := m.gen
	m.connects++

	cfg := m.cfg.Client
	cfg.URL = m.cfg.Endpoint()
	c := NewClient(cfg, m.logger)
	m.client = c

	m.setState(StateConnecting)
	m.connectTimer = time.AfterFunc(m.cfg.ConnectTimeout, func() { m.onConnectTimeout(gen) })

	m.logger.Info("connecting", "url", cfg.URL, "attempt", m.connects)
	go m.dial(gen, c)
}

func (m *Manager) dial(gen uint64, c Client) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()
	err := c.Connect(ctx)

	m.mu.Lock()
	defer m.unlock()

	if gen != m.gen || m.client != c {
		if err == nil {
			m.later(func() { c.Close() })
		}
		return
	}
	if err != nil {
		m.socketError(newError(KindTransport, "", "dial failed", err))
		return
	}

	stop := make(chan struct{})
	m.pumpStop = stop
	go m.pump(gen, c, stop)

	frame, err := json.Marshal(m.cfg.Credentials.Message())
	if err != nil {
		m.exception(err)
		return
	}
	if err := c.Send(frame); err != nil {
		m.socketError(newError(KindTransport, "", "send auth", err))
		return
	}
	m.setState(StateAuthenticating)
}

// pump feeds one socket's frames into the state machine until the socket
// fails or is detached.
func (m *Manager) pump(gen uint64, c Client, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case msg := <-c.Messages():
			m.onFrame(gen, msg)
		case err := <-c.Errors():
			// Frames read before the failure are still delivered.
		drain:
			for {
				select {
				case msg := <-c.Messages():
					m.onFrame(gen, msg)
				default:
					break drain
				}
			}
			m.onSocketError(gen, err)
			return
		}
	}
}

func (m *Manager) onSocketError(gen uint64, err error) {
	m.mu.Lock()
	defer m.unlock()
	if gen != m.gen {
		return
	}
	m.socketError(newError(KindTransport, "", "socket closed", err))
}

// socketError reports a transport failure and drops the socket.
func (m *Manager) socketError(err *Error) {
	m.logger.Warn("socket error", "error", err)
	if hook := m.cfg.OnSocketError; hook != nil {
		m.later(func() { hook(err) })
	}
	m.dropConnection(err)
}

func (m *Manager) onConnectTimeout(gen uint64) {
	m.mu.Lock()
	defer m.unlock()
	if gen != m.gen || m.state == StateReady {
		return
	}
	m.connectTimer = nil
	m.logger.Warn("connect timed out", "timeout", m.cfg.ConnectTimeout)
	m.dropConnection(newError(KindTimeout, "connect_timeout", "not ready within connect timeout", nil))
}

// detach removes the current socket and returns it for closing.
func (m *Manager) detach() Client {
	c := m.client
	m.client = nil
	if m.pumpStop != nil {
		close(m.pumpStop)
		m.pumpStop = nil
	}
	return c
}

// dropConnection closes the socket and runs close handling.
func (m *Manager) dropConnection(cause error) {
	if c := m.detach(); c != nil {
		m.later(func() { c.Close() })
	}
	m.onClosed(cause)
}

// teardown cancels everything scoped to the closed socket.
func (m *Manager) teardown(cause error) {
	m.gen++
	m.stopTimer(&m.connectTimer)
	m.stopTimer(&m.reconnectTimer)
	m.stopTimer(&m.livenessTimer)
	if m.keepalive != nil {
		m.keepalive.stop()
		m.keepalive = nil
	}

	for _, r := range m.disp.drainSent() {
		r.reject(newError(KindDisconnected, "", "socket closed", cause))
	}
	m.disp.busy = false
}

func (m *Manager) onClosed(cause error) {
	m.teardown(cause)

	switch {
	case len(m.waiters) > 0:
		m.settleWaiters(newError(KindDisconnected, "", "socket closed before ready", cause))
		m.setState(StateDisconnected)
	case m.staysClosed:
		m.rejectQueued(newError(KindDisconnected, "", "connection closed", cause))
		m.setState(StateDisconnected)
	default:
		m.setState(StateReconnecting)
		m.retrying = true
		m.emit(events.KeyError, lifecycle(ErrorPayload{TLKey: syncRetrying}), cause)

		gen := m.gen
		m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() { m.reconnect(gen) })
		m.logger.Info("reconnect scheduled", "delay", m.cfg.ReconnectDelay, "cause", cause)
	}
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	defer m.unlock()
	if gen != m.gen || m.state != StateReconnecting {
		return
	}
	m.reconnectTimer = nil
	m.connect()
}

func (m *Manager) settleWaiters(err error) {
	for _, w := range m.waiters {
		w <- err
	}
	m.waiters = nil
}

func (m *Manager) rejectQueued(cause error) {
	for _, r := range m.disp.drainQueue() {
		r.reject(cause)
	}
}

func (m *Manager) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// onFrame handles one inbound frame.
func (m *Manager) onFrame(gen uint64, tm TimestampedMessage) {
	m.mu.Lock()
	defer m.unlock()
	if gen != m.gen {
		return
	}
	m.received++
	m.stopTimer(&m.livenessTimer)

	msg, err := ParseMessage(tm.Data)
	if err != nil {
		perr := &Error{Kind: KindProtocol, Text: "malformed frame", Err: err}
		m.logger.Warn("dropping malformed frame", "error", err, "bytes", len(tm.Data))
		m.emit(events.KeyException, nil, perr)
		m.dropConnection(perr)
		return
	}

	if m.retrying {
		m.retrying = false
		m.emit(events.KeyErrorClear, lifecycle(map[string]string{"tl_key": syncRetrying}), nil)
	}

	if raw, ok := msg.Raw(keyAuthError); ok && m.authFailed(msg, raw, tm.ReceivedAt) {
		return
	}
	if msg.Has(keyAuthOK) && m.state == StateAuthenticating {
		m.onAuthenticated()
	}

	if id, ok := m.cfg.Correlation.extract(msg); ok {
		if r := m.disp.match(id); r != nil {
			if aerr := applicationError(msg); aerr != nil {
				m.logger.Debug("request failed", "action", r.Action, "message_id", id, "key", aerr.Key)
				r.reject(aerr)
			} else {
				r.resolve(msg)
			}
		}
	}

	if raw, ok := msg.Raw(keySyncResult); ok {
		m.onSyncResult(msg, raw)
	}
	if raw, ok := msg.Raw(keySchedule); ok {
		var sched struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(raw, &sched); err == nil && sched.ID > 0 {
			m.scheduleID = sched.ID
		}
	}
	if msg.Has(keyPing) {
		m.enqueue(NewRequest(ActionPong, nil))
	}

	m.publish(msg, tm.ReceivedAt)
	m.dispatchNext()
}

// authFailed handles a wserror frame. It reports whether the socket was
// dropped.
func (m *Manager) authFailed(msg *Message, raw json.RawMessage, at time.Time) bool {
	var p ErrorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		m.logger.Warn("malformed wserror payload", "error", err, "payload", string(raw))
	}
	key := p.MachineKey()
	if key != authFailedKey && m.state != StateAuthenticating {
		return false
	}

	aerr := &Error{Kind: KindAuthenticationFailed, Key: key, Text: p.Text, Payload: msg.Fields()}
	m.logger.Error("authentication failed", "key", key, "text", p.Text, "user_id", m.cfg.Credentials.UserID)

	m.publish(msg, at)
	m.emit(events.KeyError, raw, aerr)
	m.settleWaiters(aerr)
	m.staysClosed = true
	m.dropConnection(aerr)
	return true
}

func (m *Manager) onAuthenticated() {
	m.stopTimer(&m.connectTimer)
	m.setState(StateReady)
	m.logger.Info("connection ready")

	gen := m.gen
	m.keepalive = startKeepalive(m.cfg.KeepaliveInterval, func() { m.probe(gen) })

	if m.scheduleID > 0 {
		if err := m.write(NewRequest(actionCheckSchedule, Params{"sched_id": m.scheduleID})); err != nil {
			m.logger.Warn("schedule resync failed", "error", err)
		}
	}

	m.settleWaiters(nil)
}

func (m *Manager) onSyncResult(msg *Message, raw json.RawMessage) {
	var p ErrorPayload
	if err := json.Unmarshal(raw, &p); err == nil && p.MachineKey() == stationOffline {
		m.emit(events.KeyError, raw, &Error{Kind: KindApplication, Key: stationOffline, Text: p.Text, Payload: msg.Fields()})
		return
	}
	m.emit(events.KeyErrorClear, lifecycle(map[string]string{"tl_key": stationOffline}), nil)
}

// publish emits every known key of msg in wire order. Vote keys go last so
// subscribers see the schedule they refer to first.
func (m *Manager) publish(msg *Message, at time.Time) {
	var late []string
	for _, k := range msg.Keys() {
		if k == string(events.KeyAlreadyVoted) || k == string(events.KeyLiveVoting) {
			late = append(late, k)
			continue
		}
		m.publishKey(msg, k, at)
	}

	if msg.Has(keySchedule) {
		m.emit(events.KeyScheduleSynced, json.RawMessage("true"), nil)
	}
	for _, k := range late {
		m.publishKey(msg, k, at)
	}
}

func (m *Manager) publishKey(msg *Message, name string, at time.Time) {
	key, ok := events.Lookup(name)
	if !ok {
		if name != m.cfg.Correlation.Field {
			m.logger.Debug("ignoring unknown key", "key", name)
		}
		return
	}
	raw, _ := msg.Raw(name)
	e := events.Event{Key: key, Payload: raw, ReceivedAt: at}
	m.later(func() { m.bus.Publish(e) })
}

// probe is the keepalive tick.
func (m *Manager) probe(gen uint64) {
	m.mu.Lock()
	defer m.unlock()
	if gen != m.gen || m.state != StateReady {
		return
	}
	m.enqueue(NewRequest(ActionPing, nil))
}

func (m *Manager) enqueue(r *Request) {
	if r.EnqueuedAt.IsZero() {
		r.EnqueuedAt = time.Now()
	}

	ready := m.state == StateReady
	for _, s := range m.disp.enqueue(r, ready) {
		s.reject(newError(KindDisconnected, "superseded", "replaced by a newer "+s.Action+" request", nil))
	}
	if ready && !m.disp.busy {
		m.dispatchNext()
	}
}

// dispatchNext sends queued requests in FIFO order while the connection is
// ready. Requests stay queued otherwise.
func (m *Manager) dispatchNext() {
	for m.state == StateReady && m.client != nil {
		r := m.disp.pop()
		if r == nil {
			return
		}
		m.disp.busy = true

		if !r.Stateless() {
			for _, ev := range m.disp.assign(r) {
				m.logger.Warn("evicting unanswered request", "action", ev.Action, "message_id", ev.MessageID)
				ev.reject(newError(KindTimeout, "evicted", "dropped from the sent window", nil))
			}
		}

		if err := m.write(r); err != nil {
			var e *Error
			if errors.As(err, &e) && e.Kind == KindProtocol {
				r.reject(err)
				continue
			}
			r.MessageID = 0
			m.disp.pushFront(r)
			m.socketError(e)
			return
		}

		if r.Stateless() {
			if r.Action == ActionPing {
				m.armLiveness()
			}
			r.resolve(nil)
			continue
		}

		gen := m.gen
		r.timer = time.AfterFunc(m.cfg.RequestTimeout, func() { m.onRequestTimeout(gen, r) })
		m.disp.track(r)
	}
}

// write encodes and sends r on the current socket.
func (m *Manager) write(r *Request) error {
	data, err := r.frame(m.cfg.Station, m.cfg.Correlation.Field)
	if err != nil {
		return m.exception(err)
	}
	if err := m.client.Send(data); err != nil {
		return newError(KindTransport, "", "write "+r.Action, err)
	}
	m.logger.Debug("sent", "action", r.Action, "message_id", r.MessageID)
	return nil
}

func (m *Manager) exception(err error) *Error {
	perr := &Error{Kind: KindProtocol, Text: "encode frame", Err: err}
	m.logger.Error("unencodable frame", "error", err)
	m.emit(events.KeyException, nil, perr)
	return perr
}

func (m *Manager) armLiveness() {
	if m.livenessTimer != nil {
		return
	}
	gen := m.gen
	m.livenessTimer = time.AfterFunc(m.cfg.RequestTimeout, func() { m.onLivenessTimeout(gen) })
}

func (m *Manager) onLivenessTimeout(gen uint64) {
	m.mu.Lock()
	defer m.unlock()
	if gen != m.gen {
		return
	}
	m.livenessTimer = nil
	m.logger.Warn("no traffic after liveness probe", "timeout", m.cfg.RequestTimeout)
	m.dropConnection(newError(KindTimeout, "", "no traffic after liveness probe", nil))
}

// onRequestTimeout requeues r at the head and forces a reconnect; the
// retry gets a new correlation id once the connection is ready again.
func (m *Manager) onRequestTimeout(gen uint64, r *Request) {
	m.mu.Lock()
	defer m.unlock()
	if gen != m.gen || r.settled || !m.disp.untrack(r) {
		return
	}
	r.timer = nil

	m.logger.Warn("request timed out", "action", r.Action, "message_id", r.MessageID, "timeout", m.cfg.RequestTimeout)
	r.MessageID = 0
	m.disp.pushFront(r)
	m.dropConnection(newError(KindTimeout, "", "no reply to "+r.Action, nil))
}

// abandon withdraws a request whose caller gave up. A result that raced
// the cancellation wins.
func (m *Manager) abandon(r *Request, cause error) (*Message, error) {
	m.mu.Lock()
	if !r.settled {
		r.settled = true
		r.stopTimer()
		if !m.disp.dequeue(r) {
			m.disp.untrack(r)
		}
		m.unlock()
		return nil, cause
	}
	m.unlock()

	res := <-r.done
	return res.Message, res.Err
}

func lifecycle(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
