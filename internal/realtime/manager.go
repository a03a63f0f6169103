// Package realtime keeps one socket.io connection per authenticated session,
// joins the actor's rooms on every connect and fans named events out to
// registered listeners.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("realtime: not connected")

// ConnectError is the server refusing the socket, usually a bad token. The
// manager does not reconnect after it.
type ConnectError struct {
	Message string
}

func (e *ConnectError) Error() string {
	return "realtime: connection refused: " + e.Message
}

type TokenFunc func(ctx context.Context) (string, error)

// Handler receives the first argument of an event, undecoded.
type Handler func(payload json.RawMessage)

type incoming struct {
	name    string
	payload json.RawMessage
}

const writeTimeout = 10 * time.Second

type Manager struct {
	cfg    models.SocketConfig
	token  TokenFunc
	logger *slog.Logger
	dialer *websocket.Dialer

	mu         sync.Mutex
	handlers   map[string]map[int]Handler
	statusSubs map[int]func(connected bool)
	nextID     int
	conn       *websocket.Conn
	actor      Actor
	changed    chan struct{}
	lastErr    error
	cancel     context.CancelFunc
	done       chan struct{}

	writeMu sync.Mutex
}

func NewManager(cfg models.SocketConfig, token TokenFunc, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		token:  token,
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		handlers:   make(map[string]map[int]Handler),
		statusSubs: make(map[int]func(bool)),
		changed:    make(chan struct{}),
	}
}

func (m *Manager) endpoint() (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("realtime: bad socket url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("realtime: unsupported socket url scheme %q", u.Scheme)
	}
	u.Path = m.cfg.Path
	if u.Path == "" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect starts maintaining a connection for actor until ctx is done or
// Close is called. A previous connection is torn down first. It returns
// without waiting for the first connect; use WaitConnected for that.
func (m *Manager) Connect(ctx context.Context, actor Actor) error {
	if _, err := m.endpoint(); err != nil {
		return err
	}
	m.Close()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.mu.Lock()
	m.actor = actor
	m.cancel = cancel
	m.done = done
	m.lastErr = nil
	m.mu.Unlock()

	go m.run(runCtx, actor, done)
	return nil
}

// Close tears the connection down and stops reconnecting.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.actor = Actor{}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Actor returns the actor the manager is currently serving.
func (m *Manager) Actor() Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actor
}

func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// WaitConnected blocks until the socket is connected, the server refuses
// it, or ctx is done.
func (m *Manager) WaitConnected(ctx context.Context) error {
	for {
		m.mu.Lock()
		connected, changed, lastErr := m.conn != nil, m.changed, m.lastErr
		m.mu.Unlock()
		if connected {
			return nil
		}
		var connectErr *ConnectError
		if errors.As(lastErr, &connectErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// On registers a listener for event and returns a func that removes it.
func (m *Manager) On(event string, h Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	if m.handlers[event] == nil {
		m.handlers[event] = make(map[int]Handler)
	}
	m.handlers[event][id] = h
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers[event], id)
	}
}

// OnStatus registers a listener for connect and disconnect transitions.
func (m *Manager) OnStatus(fn func(connected bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.statusSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.statusSubs, id)
	}
}

// Emit sends an event to the server.
func (m *Manager) Emit(event string, args ...interface{}) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	pkt, err := encodeEvent(event, args...)
	if err != nil {
		return err
	}
	return m.write(conn, pkt)
}

func (m *Manager) run(ctx context.Context, actor Actor, done chan struct{}) {
	defer close(done)
	b := newBackoff(m.cfg.ReconnectDelay, m.cfg.ReconnectDelayMax, m.cfg.Randomization, rand.New(rand.NewSource(time.Now().UnixNano())))

	for {
		err := m.session(ctx, actor, b)
		if ctx.Err() != nil {
			return
		}
		m.setLastErr(err)

		var connectErr *ConnectError
		if errors.As(err, &connectErr) {
			m.logger.Error("socket refused, not reconnecting", "error", err)
			return
		}

		delay := b.next()
		m.logger.Warn("socket disconnected, reconnecting", "error", err, "delay", delay.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session runs one connection from dial to disconnect.
func (m *Manager) session(ctx context.Context, actor Actor, b *backoff) error {
	endpoint, err := m.endpoint()
	if err != nil {
		return err
	}
	token := ""
	if m.token != nil {
		if token, err = m.token(ctx); err != nil {
			return fmt.Errorf("realtime: failed to read token: %w", err)
		}
	}

	conn, _, err := m.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("realtime: dial failed: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			m.write(conn, encodeDisconnect())
			conn.Close()
		case <-stop:
		}
	}()

	open, err := m.handshake(conn, token)
	if err != nil {
		return err
	}

	m.setConn(conn)
	defer m.clearConn(conn)
	b.reset()

	rooms := RoomsFor(actor)
	for _, room := range rooms {
		pkt, err := encodeEvent(models.EventJoinRoom, room)
		if err != nil {
			return err
		}
		if err := m.write(conn, pkt); err != nil {
			return fmt.Errorf("realtime: join %s: %w", room, err)
		}
	}
	m.logger.Info("socket connected", "sid", open.SID, "actor", actor.ID, "rooms", rooms)

	events := make(chan incoming, 64)
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		for ev := range events {
			m.dispatch(ev)
		}
	}()
	defer func() {
		close(events)
		<-dispatchDone
	}()

	timeout := time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	for {
		if timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(timeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("realtime: read failed: %w", err)
		}
		f, err := decodeFrame(msg)
		if err != nil {
			m.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		switch f.engine {
		case enginePing:
			if err := m.write(conn, encodePong()); err != nil {
				return err
			}
		case engineClose:
			return errors.New("realtime: server closed the transport")
		case engineMessage:
			switch f.socket {
			case socketEvent:
				name, payload, err := f.event()
				if err != nil {
					m.logger.Warn("dropping malformed event", "error", err)
					continue
				}
				select {
				case events <- incoming{name: name, payload: payload}:
				case <-ctx.Done():
					return ctx.Err()
				}
			case socketDisconnect:
				return errors.New("realtime: server disconnected the socket")
			}
		}
	}
}

func (m *Manager) handshake(conn *websocket.Conn, token string) (openPayload, error) {
	timeout := m.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	conn.SetReadDeadline(time.Now().Add(timeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return openPayload{}, fmt.Errorf("realtime: handshake read failed: %w", err)
	}
	f, err := decodeFrame(msg)
	if err != nil {
		return openPayload{}, err
	}
	if f.engine != engineOpen {
		return openPayload{}, fmt.Errorf("realtime: expected open packet, got %q", f.engine)
	}
	var open openPayload
	if err := json.Unmarshal(f.data, &open); err != nil {
		return openPayload{}, fmt.Errorf("realtime: bad open payload: %w", err)
	}

	var auth interface{}
	if token != "" {
		auth = map[string]string{"token": token}
	}
	pkt, err := encodeConnect(auth)
	if err != nil {
		return openPayload{}, err
	}
	if err := m.write(conn, pkt); err != nil {
		return openPayload{}, err
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return openPayload{}, fmt.Errorf("realtime: connect read failed: %w", err)
		}
		f, err := decodeFrame(msg)
		if err != nil {
			continue
		}
		switch {
		case f.engine == enginePing:
			if err := m.write(conn, encodePong()); err != nil {
				return openPayload{}, err
			}
		case f.engine == engineClose:
			return openPayload{}, errors.New("realtime: server closed during connect")
		case f.engine == engineMessage && f.socket == socketConnect:
			conn.SetReadDeadline(time.Time{})
			return open, nil
		case f.engine == engineMessage && f.socket == socketConnectError:
			var body struct {
				Message string `json:"message"`
			}
			json.Unmarshal(f.data, &body)
			if body.Message == "" {
				body.Message = string(f.data)
			}
			return openPayload{}, &ConnectError{Message: body.Message}
		}
	}
}

func (m *Manager) write(conn *websocket.Conn, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) dispatch(ev incoming) {
	m.mu.Lock()
	hs := make([]Handler, 0, len(m.handlers[ev.name]))
	for _, h := range m.handlers[ev.name] {
		hs = append(hs, h)
	}
	m.mu.Unlock()

	if len(hs) == 0 {
		m.logger.Debug("event without listeners", "event", ev.name)
	}
	for _, h := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("event handler panicked", "event", ev.name, "panic", fmt.Sprint(r))
				}
			}()
			h(ev.payload)
		}()
	}
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.lastErr = nil
	m.signalLocked()
	subs := m.statusSubsLocked()
	m.mu.Unlock()
	for _, fn := range subs {
		fn(true)
	}
}

func (m *Manager) clearConn(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.signalLocked()
	subs := m.statusSubsLocked()
	m.mu.Unlock()
	m.logger.Info("socket disconnected")
	for _, fn := range subs {
		fn(false)
	}
}

func (m *Manager) setLastErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.signalLocked()
	m.mu.Unlock()
}

func (m *Manager) signalLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Manager) statusSubsLocked() []func(bool) {
	subs := make([]func(bool), 0, len(m.statusSubs))
	for _, fn := range m.statusSubs {
		subs = append(subs, fn)
	}
	return subs
}
