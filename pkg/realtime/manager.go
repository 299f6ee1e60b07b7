package realtime

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zfogg/sidechain/community/pkg/clock"
	"github.com/zfogg/sidechain/community/pkg/config"
	apperrors "github.com/zfogg/sidechain/community/pkg/errors"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/metrics"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

var stateNames = []string{"disconnected", "connecting", "connected", "reconnecting", "failed"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds connection parameters.
type Config struct {
	// URL is the realtime endpoint without query parameters, e.g. wss://api.example.com/ws.
	URL    string
	Token  string
	Tenant string

	Backoff              []time.Duration
	PingInterval         time.Duration
	PongTimeout          time.Duration
	FallbackPollInterval time.Duration
}

// DefaultConfig returns the standard timings for url, token and tenant.
func DefaultConfig(wsURL, token, tenant string) Config {
	return Config{
		URL:    wsURL,
		Token:  token,
		Tenant: tenant,
		Backoff: []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second,
		},
		PingInterval:         25 * time.Second,
		PongTimeout:          10 * time.Second,
		FallbackPollInterval: 30 * time.Second,
	}
}

// ConfigFromSettings reads the realtime.* keys. An empty wsURL is derived from
// api.base_url. Unset timings keep their defaults.
func ConfigFromSettings(wsURL, token, tenant string) (Config, error) {
	if wsURL == "" {
		derived, err := config.RealtimeURL()
		if err != nil {
			return Config{}, err
		}
		wsURL = derived
	}
	cfg := DefaultConfig(wsURL, token, tenant)
	if b := config.BackoffSchedule(); len(b) > 0 {
		cfg.Backoff = b
	}
	if d := config.GetDuration("realtime.ping_interval"); d > 0 {
		cfg.PingInterval = d
	}
	if d := config.GetDuration("realtime.pong_timeout"); d > 0 {
		cfg.PongTimeout = d
	}
	if d := config.GetDuration("realtime.fallback_poll_interval"); d > 0 {
		cfg.FallbackPollInterval = d
	}
	return cfg, nil
}

// Stats counts traffic over the manager's lifetime.
type Stats struct {
	MessagesReceived int64
	MessagesSent     int64
	ReconnectCount   int64
	ConnectedAt      time.Time
	DisconnectedAt   time.Time
}

// Snapshot is a consistent view of the connection.
type Snapshot struct {
	State                State
	TenantID             string
	ReconnectAttempt     int
	LastError            string
	UsingFallbackPolling bool
	Stats                Stats
}

// session is one transport attempt. Callbacks carrying a session that is no
// longer current are ignored, so a transport can only drive one transition.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   Conn
}

// Manager keeps one authenticated, tenant-scoped realtime connection alive.
// No method blocks on the network and none returns an error; failures are
// visible through Snapshot.
type Manager struct {
	cfg        Config
	dialer     Dialer
	clock      clock.Clock
	dispatcher *Dispatcher
	log        *log.Logger
	metrics    *metrics.Metrics
	spawn      func(func())

	mu       sync.Mutex
	state    State
	attempt  int
	lastErr  string
	fallback bool
	closed   bool
	sess     *session
	stats    Stats
	pending  []Event

	reconnectTimer clock.Timer
	pingTimer      clock.Timer
	pongTimer      clock.Timer
	pollTimer      clock.Timer
	reconnectGen   int
	pongGen        int
	pollGen        int
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the gorilla dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithClock replaces the timer source.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithMetrics records connection metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a disconnected manager. State changes and server events
// are delivered through dispatcher.
func NewManager(cfg Config, dispatcher *Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		log:        logger.Component("realtime"),
		spawn:      func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewGorillaDialer()
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.metrics == nil {
		m.metrics = dispatcher.metrics
	}
	m.metrics.SetState(m.state.String(), stateNames)
	return m
}

// Connect opens the transport. It is a no-op without a token and tenant,
// while a transport is already open or opening, and in the failed state.
func (m *Manager) Connect() {
	m.mu.Lock()
	s := m.connectLocked()
	m.unlock()
	if s != nil {
		m.spawn(func() { m.dial(s) })
	}
}

// Disconnect closes the transport with a normal closure and clears every
// connection timer. It never schedules a reconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopTimer(&m.reconnectTimer)
	m.reconnectGen++
	s := m.teardownLocked()
	m.setStateLocked(StateDisconnected)
	m.unlock()

	if s != nil && s.conn != nil {
		_ = s.conn.Close(CloseNormalClosure, "Client disconnect")
	}
}

// Reconnect disconnects, resets the attempt counter, leaves fallback polling
// and connects again. It is the only way out of the failed state.
func (m *Manager) Reconnect() {
	m.Disconnect()

	m.mu.Lock()
	m.attempt = 0
	m.stopFallbackLocked()
	m.unlock()

	m.Connect()
}

// Close tears the manager down for good.
func (m *Manager) Close() {
	m.Disconnect()

	m.mu.Lock()
	m.closed = true
	m.stopFallbackLocked()
	m.unlock()
}

// SendMessage writes an envelope if the transport is open and reports whether
// the send was attempted.
func (m *Manager) SendMessage(t MessageType, payload interface{}) bool {
	m.mu.Lock()
	var conn Conn
	if m.sess != nil && m.state == StateConnected {
		conn = m.sess.conn
	}
	m.mu.Unlock()
	if conn == nil {
		return false
	}

	env, err := NewEnvelope(t, payload, m.clock.Now())
	if err != nil {
		m.log.Warn("cannot encode outbound message", "type", t, "err", err)
		return false
	}
	data, err := env.Encode()
	if err != nil {
		m.log.Warn("cannot encode outbound message", "type", t, "err", err)
		return false
	}

	m.write(conn, data)
	return true
}

// Snapshot returns the current connection state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:                m.state,
		TenantID:             m.cfg.Tenant,
		ReconnectAttempt:     m.attempt,
		LastError:            m.lastErr,
		UsingFallbackPolling: m.fallback,
		Stats:                m.stats,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dispatcher returns the dispatcher receiving this connection's envelopes.
func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// unlock releases the lock and then delivers queued state changes.
func (m *Manager) unlock() {
	events := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, ev := range events {
		m.dispatcher.emit(ev)
	}
}

func (m *Manager) setStateLocked(to State) {
	if m.state == to {
		return
	}
	from := m.state
	m.state = to
	m.metrics.SetState(to.String(), stateNames)
	m.log.Debug("state change", "from", from, "to", to, "attempt", m.attempt)
	m.pending = append(m.pending, StateChanged{
		From:    from,
		To:      to,
		Attempt: m.attempt,
		Err:     m.lastErr,
		At:      m.clock.Now(),
	})
}

func (m *Manager) stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (m *Manager) connectLocked() *session {
	if m.closed || m.cfg.Token == "" || m.cfg.Tenant == "" {
		m.log.Debug("connect skipped", "closed", m.closed, "has_token", m.cfg.Token != "", "tenant", m.cfg.Tenant)
		return nil
	}
	if m.sess != nil || m.state == StateFailed {
		return nil
	}
	m.stopTimer(&m.reconnectTimer)
	m.reconnectGen++

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{ctx: ctx, cancel: cancel}
	m.sess = s
	m.setStateLocked(StateConnecting)
	return s
}

// teardownLocked detaches the current session and stops its heartbeat.
func (m *Manager) teardownLocked() *session {
	m.stopTimer(&m.pingTimer)
	m.stopTimer(&m.pongTimer)
	m.pongGen++
	s := m.sess
	m.sess = nil
	if s != nil {
		s.cancel()
		m.stats.DisconnectedAt = m.clock.Now()
	}
	return s
}

func (m *Manager) target() string {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return m.cfg.URL
	}
	q := u.Query()
	q.Set("token", m.cfg.Token)
	q.Set("tenant", m.cfg.Tenant)
	u.RawQuery = q.Encode()
	return u.String()
}

func (m *Manager) dial(s *session) {
	m.log.Debug("dialing", "url", m.cfg.URL, "tenant", m.cfg.Tenant)
	conn, err := m.dialer.Dial(s.ctx, m.target())
	if err != nil {
		m.handleClose(s, CloseAbnormalClosure, "dial failed", apperrors.TransportError(err))
		return
	}
	m.handleOpen(s, conn)
}

func (m *Manager) handleOpen(s *session, conn Conn) {
	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		_ = conn.Close(CloseNormalClosure, "Client disconnect")
		return
	}
	s.conn = conn
	m.attempt = 0
	m.lastErr = ""
	m.stats.ConnectedAt = m.clock.Now()
	m.setStateLocked(StateConnected)
	m.schedulePingLocked(s)
	m.unlock()

	m.log.Info("connected", "tenant", m.cfg.Tenant)
	go m.readLoop(s, conn)
}

func (m *Manager) readLoop(s *session, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			code, reason := closeDetails(err)
			var cause error
			if code != CloseNormalClosure {
				cause = apperrors.TransportError(err)
			}
			m.handleClose(s, code, reason, cause)
			return
		}
		m.handleFrame(s, data)
	}
}

// handleClose drives the close transitions. Only the first close reported for
// a session has any effect.
func (m *Manager) handleClose(s *session, code int, reason string, cause error) {
	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	if cause != nil {
		m.lastErr = errorText(cause)
	}
	m.log.Info("disconnected", "code", code, "reason", reason)

	switch {
	case code == CloseNormalClosure:
		m.setStateLocked(StateDisconnected)
	case m.attempt < len(m.cfg.Backoff):
		delay := m.cfg.Backoff[m.attempt]
		m.attempt++
		m.stats.ReconnectCount++
		m.metrics.ReconnectAttempts.Inc()
		m.reconnectGen++
		gen := m.reconnectGen
		m.reconnectTimer = m.clock.AfterFunc(delay, func() { m.reconnectTick(gen) })
		m.log.Info("reconnecting", "in", delay, "attempt", m.attempt)
		m.setStateLocked(StateReconnecting)
	default:
		m.lastErr = apperrors.ReconnectExhaustedError(m.attempt).Error()
		m.log.Warn("giving up on realtime, polling instead", "attempts", m.attempt)
		m.setStateLocked(StateFailed)
		m.startFallbackLocked()
	}
	conn := s.conn
	m.unlock()

	if conn != nil {
		_ = conn.Close(code, reason)
	}
}

func errorText(err error) string {
	if e, ok := err.(*apperrors.Error); ok && e.Cause != nil {
		return e.Cause.Error()
	}
	return err.Error()
}

func (m *Manager) reconnectTick(gen int) {
	m.mu.Lock()
	if gen != m.reconnectGen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	s := m.connectLocked()
	m.unlock()
	if s != nil {
		m.spawn(func() { m.dial(s) })
	}
}

func (m *Manager) schedulePingLocked(s *session) {
	m.pingTimer = m.clock.AfterFunc(m.cfg.PingInterval, func() { m.pingTick(s) })
}

func (m *Manager) pingTick(s *session) {
	m.mu.Lock()
	if m.sess != s || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.schedulePingLocked(s)
	m.stopTimer(&m.pongTimer)
	m.pongGen++
	gen := m.pongGen
	m.pongTimer = m.clock.AfterFunc(m.cfg.PongTimeout, func() { m.pongTimeout(s, gen) })
	conn := s.conn
	m.mu.Unlock()

	m.write(conn, pingFrame)
}

func (m *Manager) pongTimeout(s *session, gen int) {
	m.mu.Lock()
	if m.sess != s || gen != m.pongGen {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.metrics.HeartbeatTimeouts.Inc()
	m.log.Warn("pong timeout, closing transport")
	m.handleClose(s, ClosePongTimeout, "Pong timeout", apperrors.HeartbeatTimeoutError())
}

func (m *Manager) write(conn Conn, data []byte) {
	if err := conn.WriteMessage(data); err != nil {
		m.log.Debug("write failed", "err", err)
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
		return
	}
	m.metrics.MessagesSent.Inc()
	m.mu.Lock()
	m.stats.MessagesSent++
	m.mu.Unlock()
}

func (m *Manager) handleFrame(s *session, data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		m.dispatcher.drop("malformed", apperrors.MalformedEnvelopeError(err))
		return
	}

	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		return
	}
	m.stats.MessagesReceived++
	switch env.Type {
	case TypePong:
		m.stopTimer(&m.pongTimer)
		m.pongGen++
	case TypeError:
		var p ErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err == nil {
			m.lastErr = apperrors.ServerPushedError(p.Code, p.Message).Message
		}
	}
	m.mu.Unlock()

	m.dispatcher.Handle(env)
}

func (m *Manager) startFallbackLocked() {
	m.fallback = true
	m.stopTimer(&m.pollTimer)
	m.pollGen++
	m.schedulePollLocked(m.pollGen)
}

func (m *Manager) stopFallbackLocked() {
	m.fallback = false
	m.stopTimer(&m.pollTimer)
	m.pollGen++
}

func (m *Manager) schedulePollLocked(gen int) {
	m.pollTimer = m.clock.AfterFunc(m.cfg.FallbackPollInterval, func() { m.pollTick(gen) })
}

func (m *Manager) pollTick(gen int) {
	m.mu.Lock()
	if !m.fallback || gen != m.pollGen {
		m.mu.Unlock()
		return
	}
	m.schedulePollLocked(gen)
	m.mu.Unlock()

	m.metrics.FallbackPolls.Inc()
	m.log.Debug("fallback poll", "tenant", m.cfg.Tenant)
	m.dispatcher.store.Invalidate(querykeys.UnreadCount(m.cfg.Tenant))
}
