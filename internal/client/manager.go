// Package client is the headless room client: a connection manager that
// keeps one websocket session alive across drops, a playback synchronizer
// that converges a local media transport on the room's authoritative state,
// and a gesture controller for the admin side.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/syncroom/server/internal/protocol"
)

// Notifier surfaces user-visible connectivity notices. Connection faults
// never fail silently; they always end up here.
type Notifier interface {
	Success(text string)
	Warning(text string)
	Error(text string)
}

type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Warning(string) {}
func (NopNotifier) Error(string)   {}

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

type ManagerConfig struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	ThrottleWindow       time.Duration
	PingInterval         time.Duration
	LatencyAlpha         float64
}

func DefaultManagerConfig(url string) ManagerConfig {
	return ManagerConfig{
		URL:                  url,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 5,
		ThrottleWindow:       250 * time.Millisecond,
		PingInterval:         time.Second,
		LatencyAlpha:         0.2,
	}
}

// Manager owns one connection to the coordinator. It queues outbound
// messages while offline, retries the connection on a fixed interval up to
// a ceiling and keeps a smoothed latency estimate from ping/pong round
// trips.
type Manager struct {
	cfg      ManagerConfig
	dialer   Dialer
	notifier Notifier
	logger   *slog.Logger
	handler  func(protocol.Message)

	mu             sync.Mutex
	writeMu        sync.Mutex
	state          connState
	conn           Conn
	queue          []protocol.Message
	attempts       int
	reconnectTimer *time.Timer
	latency        time.Duration
	lastBurstSend  time.Time
}

func NewManager(cfg ManagerConfig, dialer Dialer, notifier Notifier, logger *slog.Logger) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &Manager{
		cfg:      cfg,
		dialer:   dialer,
		notifier: notifier,
		logger:   logger,
	}
}

// OnMessage registers the inbound handler. Pongs are consumed internally;
// everything else is forwarded in arrival order.
func (m *Manager) OnMessage(handler func(protocol.Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Connect dials the endpoint. A failed dial is non-fatal: it schedules a
// retry like any other drop, so the caller never has to loop.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.state == stateOpen || m.state == stateConnecting || m.state == stateClosed {
		m.mu.Unlock()
		return
	}
	m.state = stateConnecting
	m.mu.Unlock()

	conn, err := m.dialer.Dial(ctx, m.cfg.URL)
	if err != nil {
		m.logger.DebugContext(ctx, "dial failed", "error", err)
		m.notifier.Error("Connection failed. Attempting to reconnect...")
		m.scheduleReconnect(ctx)
		return
	}

	m.mu.Lock()
	m.conn = conn
	m.state = stateOpen
	m.attempts = 0
	pending := m.queue
	m.queue = nil
	m.mu.Unlock()

	m.notifier.Success("Connection established.")

	// flush messages queued while offline, in original send order; a failed
	// write puts the remainder back at the head of the queue for the next
	// connection, nothing queued is ever dropped
	for i, msg := range pending {
		if err := m.write(conn, msg); err != nil {
			m.logger.DebugContext(ctx, "failed to flush queued message", "error", err)
			m.mu.Lock()
			m.queue = append(append([]protocol.Message{}, pending[i:]...), m.queue...)
			m.mu.Unlock()
			break
		}
	}

	go m.readLoop(ctx, conn)
	go m.pingLoop(ctx, conn)
}

// Send transmits immediately on an open connection, queues while
// connecting and queues with a warning while disconnected. Seek and
// play/pause bursts are throttled to one per window so scrubbing does not
// flood the coordinator.
func (m *Manager) Send(msg protocol.Message) error {
	m.mu.Lock()

	switch msg.MessageType() {
	case protocol.TypeSeek, protocol.TypePlayPause:
		now := time.Now()
		if now.Sub(m.lastBurstSend) < m.cfg.ThrottleWindow {
			m.mu.Unlock()
			return nil
		}
		m.lastBurstSend = now
	}

	switch m.state {
	case stateOpen:
		conn := m.conn
		m.mu.Unlock()
		return m.write(conn, msg)
	case stateConnecting:
		m.queue = append(m.queue, msg)
		m.mu.Unlock()
		return nil
	default:
		m.queue = append(m.queue, msg)
		m.mu.Unlock()
		m.notifier.Warning("Attempted to send message while disconnected. Message queued.")
		return nil
	}
}

// Latency is the smoothed one-way latency estimate.
func (m *Manager) Latency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latency
}

// Close tears the connection down for good: no reconnects, no timers left
// running.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.state = stateClosed
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(ctx, err)
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			m.logger.DebugContext(ctx, "dropped inbound message", "error", err)
			continue
		}

		if pong, ok := msg.(*protocol.Pong); ok {
			m.observeRTT(time.Since(time.UnixMilli(pong.Time)))
			continue
		}

		m.mu.Lock()
		handler := m.handler
		m.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
}

func (m *Manager) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			open := m.state == stateOpen && m.conn == conn
			m.mu.Unlock()
			if !open {
				return
			}

			if err := m.write(conn, &protocol.Ping{Time: time.Now().UnixMilli()}); err != nil {
				return
			}
		}
	}
}

func (m *Manager) handleDrop(ctx context.Context, err error) {
	m.mu.Lock()
	if m.state == stateClosed {
		m.mu.Unlock()
		return
	}
	m.state = stateDisconnected
	m.conn = nil
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "connection lost", "error", err)
	m.notifier.Error("Connection lost. Attempting to reconnect...")
	m.scheduleReconnect(ctx)
}

func (m *Manager) scheduleReconnect(ctx context.Context) {
	m.mu.Lock()
	if m.state == stateClosed {
		m.mu.Unlock()
		return
	}

	m.attempts++
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.state = stateClosed
		m.mu.Unlock()
		m.notifier.Error("Max reconnection attempts reached. Please refresh the page.")
		return
	}

	m.state = stateDisconnected
	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectInterval, func() {
		m.Connect(ctx)
	})
	m.mu.Unlock()
}

// observeRTT folds half the round trip into the exponential moving average.
func (m *Manager) observeRTT(rtt time.Duration) {
	if rtt < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	oneWay := float64(rtt) / 2
	if m.latency == 0 {
		m.latency = time.Duration(oneWay)
		return
	}

	alpha := m.cfg.LatencyAlpha
	m.latency = time.Duration(float64(m.latency)*(1-alpha) + oneWay*alpha)
}

func (m *Manager) write(conn Conn, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return conn.WriteMessage(data)
}
