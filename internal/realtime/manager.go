package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"alankar-sync/internal/logging"
)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = time.Second
	defaultReconnectMaxDelay    = 5 * time.Second
)

// State of the connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateFailed is terminal for a connect cycle: the bounded reconnect
	// attempts were exhausted and no further retries are scheduled.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handler receives the raw payload of one dispatched event.
type Handler func(data json.RawMessage)

// Subscription identifies one registered handler for Off.
type Subscription int

type handlerEntry struct {
	id Subscription
	fn Handler
}

// Status is the externally visible connection snapshot.
type Status struct {
	Connected         bool
	ReconnectAttempts int
}

type Config struct {
	// RealtimeURL is the websocket endpoint; PollURL its long-poll fallback.
	RealtimeURL string
	PollURL     string
	// HTTPClient is used by the long-poll fallback transport.
	HTTPClient *http.Client

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	ReconnectMaxDelay    time.Duration

	Logger *logging.Logger
}

// Manager owns the one realtime connection for the whole client session.
// Construct a single instance at the composition root and inject it;
// components only register and remove listeners.
//
// The manager never schedules its own heartbeat: Ping is caller-driven and
// consumers that want liveness run their own keep-alive cadence.
type Manager struct {
	realtimeURL string
	pollURL     string
	http        *http.Client
	maxAttempts int
	delay       time.Duration
	maxDelay    time.Duration
	logger      *logging.Logger

	mu       sync.Mutex
	state    State
	attempts int
	conn     transport
	cancel   context.CancelFunc
	handlers map[string][]handlerEntry
	nextID   Subscription
}

func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		panic("realtime.NewManager: logger must not be nil")
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = defaultReconnectMaxDelay
	}
	return &Manager{
		realtimeURL: cfg.RealtimeURL,
		pollURL:     cfg.PollURL,
		http:        cfg.HTTPClient,
		maxAttempts: cfg.MaxReconnectAttempts,
		delay:       cfg.ReconnectDelay,
		maxDelay:    cfg.ReconnectMaxDelay,
		logger:      cfg.Logger,
		handlers:    map[string][]handlerEntry{},
	}
}

// Connect starts the connection loop. It is idempotent while a connection
// is live or being established: calling it again is a logged no-op, never a
// second socket.
func (m *Manager) Connect(ctx context.Context, token string) {
	m.mu.Lock()
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		m.logger.Debug("realtime already connected")
		return
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = StateConnecting
	m.attempts = 0
	m.mu.Unlock()

	go m.runConnectLoop(sessionCtx, token)
}

// Disconnect is a hard reset: the transport closes, connection state is
// cleared, and every registered handler list is dropped. Listeners must
// re-subscribe after a later Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel := m.cancel
	conn := m.conn
	m.cancel = nil
	m.conn = nil
	m.state = StateDisconnected
	m.attempts = 0
	m.handlers = map[string][]handlerEntry{}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.close()
	}
	m.logger.Info("realtime disconnected")
}

// On registers a callback for one event name and returns its subscription
// token. Callbacks for a name run in registration order.
func (m *Manager) On(event string, fn Handler) Subscription {
	if fn == nil {
		panic("realtime.Manager.On: handler must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.handlers[event] = append(m.handlers[event], handlerEntry{id: id, fn: fn})
	return id
}

// Off removes the subscription registered under event.
func (m *Manager) Off(event string, sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.handlers[event]
	for i, entry := range entries {
		if entry.id != sub {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(m.handlers, event)
		} else {
			m.handlers[event] = entries
		}
		return
	}
}

// Ping sends a keep-alive. It is a no-op unless connected.
func (m *Manager) Ping() {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()
	if !connected || conn == nil {
		m.logger.Debug("ping skipped: not connected")
		return
	}
	if err := conn.ping(); err != nil {
		m.logger.Warn("ping failed", logging.Field("error", err))
	}
}

// ConnectionStatus returns the current connection snapshot.
func (m *Manager) ConnectionStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Connected: m.state == StateConnected, ReconnectAttempts: m.attempts}
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// runConnectLoop runs sessions until the context ends or the consecutive
// failure budget is spent. Each session blocks while connected; the attempt
// counter resets every time a connection is established.
func (m *Manager) runConnectLoop(ctx context.Context, token string) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = m.delay
	retry.MaxInterval = m.maxDelay
	retry.Reset()

	for {
		wasConnected, err := m.runSession(ctx, token)
		if ctx.Err() != nil {
			return
		}
		if wasConnected {
			retry.Reset()
			m.emit(EventConnectionStatus, rawJSON(ConnectionStatus{Connected: false, Reason: reasonString(err)}))
		}

		var attempts int
		m.mu.Lock()
		m.attempts++
		attempts = m.attempts
		m.state = StateDisconnected
		m.mu.Unlock()

		if attempts >= m.maxAttempts {
			m.logger.Error("max reconnection attempts reached", logging.Field("attempts", attempts))
			m.mu.Lock()
			m.state = StateFailed
			m.mu.Unlock()
			m.emit(EventConnectionFailed, rawJSON(ConnectionFailure{Error: "max reconnection attempts reached"}))
			return
		}

		wait := retry.NextBackOff()
		m.logger.Debug("retrying realtime connection",
			logging.Field("error", err),
			logging.Field("attempt", attempts),
			logging.Field("next_retry", wait.String()),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		m.mu.Lock()
		m.state = StateConnecting
		m.mu.Unlock()
	}
}

// runSession dials once and pumps events until the connection drops.
func (m *Manager) runSession(ctx context.Context, token string) (bool, error) {
	conn, err := dialTransport(ctx, m.realtimeURL, m.pollURL, token, m.http, m.logger)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	m.attempts = 0
	m.mu.Unlock()
	m.logger.Info("realtime connected", logging.Field("transport", conn.kind()))
	m.emit(EventConnectionStatus, rawJSON(ConnectionStatus{Connected: true}))

	// Close the transport when the session context ends so a blocked
	// receive unblocks during Disconnect or shutdown.
	stopWatch := context.AfterFunc(ctx, func() { _ = conn.close() })
	defer stopWatch()

	for {
		event, recvErr := conn.receive()
		if recvErr != nil {
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()
			return true, recvErr
		}
		m.dispatch(event)
	}
}

func (m *Manager) dispatch(event Event) {
	switch {
	case event.Name == eventPong:
		m.logger.Debug("pong received")
	case isBusinessEvent(event.Name):
		m.logger.Debug("realtime event received", logging.Field("event", event.Name))
		m.emit(event.Name, event.Data)
	default:
		m.logger.Debug("ignoring realtime event",
			logging.Field("event", event.Name),
			logging.Field("data", logging.FormatHTTPPayload(event.Data)),
		)
	}
}

// emit invokes every handler registered for name in order, isolating
// panics per callback so one bad listener cannot starve its siblings.
func (m *Manager) emit(name string, data json.RawMessage) {
	m.mu.Lock()
	entries := append([]handlerEntry(nil), m.handlers[name]...)
	m.mu.Unlock()

	for _, entry := range entries {
		m.invoke(name, entry, data)
	}
}

func (m *Manager) invoke(name string, entry handlerEntry, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked",
				logging.Field("event", name),
				logging.Field("error", fmt.Sprintf("%v", r)),
			)
		}
	}()
	entry.fn(data)
}

func reasonString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
