// Package client owns one game socket per character and routes every inbound
// frame into that character's session.
package client

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"arxclient.ai/internal/persistence/framelog"
	"arxclient.ai/internal/protocol"
	"arxclient.ai/internal/session"
)

// FrameRecorder archives raw frames in both directions.
type FrameRecorder interface {
	Record(character string, dir framelog.Direction, frame []byte) error
}

type Config struct {
	// URLFor builds the socket url for a character.
	URLFor func(id session.CharacterID) string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadTimeout closes a socket that has been silent this long. Zero waits forever.
	ReadTimeout time.Duration

	// StateFile keeps per-character connection history across restarts.
	StateFile string

	Frames FrameRecorder
	// OnRoulette receives roulette results. They never reach the store.
	OnRoulette func(id session.CharacterID, r protocol.RouletteResult)

	Logger zerolog.Logger
	Now    func() time.Time
}

type Manager struct {
	cfg    Config
	store  *session.Store
	dialer websocket.Dialer
	log    zerolog.Logger

	mu      sync.Mutex
	conns   map[session.CharacterID]*conn
	history map[string]persistedConnection
	closed  bool

	wg sync.WaitGroup
}

func NewManager(cfg Config, store *session.Store) (*Manager, error) {
	if cfg.URLFor == nil {
		return nil, oops.In("client").Errorf("nil url builder")
	}
	if store == nil {
		return nil, oops.In("client").Errorf("nil session store")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	st, err := loadStateFile(cfg.StateFile)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:     cfg,
		store:   store,
		dialer:  websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		log:     cfg.Logger.With().Str("component", "client").Logger(),
		conns:   map[session.CharacterID]*conn{},
		history: st,
	}, nil
}

// Close drops every socket and waits for the read loops to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.DisconnectAll()
	m.wg.Wait()
	return nil
}

// Connect dials the character's socket and returns once it is open or has
// failed. A character that is already connecting or open is left alone.
// Failures are not retried.
func (m *Manager) Connect(ctx context.Context, id session.CharacterID) error {
	c, fresh, err := m.begin(ctx, id, false)
	if err != nil || !fresh {
		return err
	}
	return m.dial(c)
}

// Reconnect drops any existing socket for the character and dials a new one.
func (m *Manager) Reconnect(ctx context.Context, id session.CharacterID) error {
	c, _, err := m.begin(ctx, id, true)
	if err != nil {
		return err
	}
	return m.dial(c)
}

func (m *Manager) begin(ctx context.Context, id session.CharacterID, replace bool) (*conn, bool, error) {
	if id == "" {
		return nil, false, ErrEmptyCharacter
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, false, ErrManagerClosed
	}
	old := m.conns[id]
	if old != nil && !replace {
		if st := old.State(); st == StateConnecting || st == StateOpen {
			m.mu.Unlock()
			return old, false, nil
		}
	}
	c := newConn(ctx, m, id)
	m.conns[id] = c
	m.mu.Unlock()

	if old != nil {
		old.close(nil)
		m.store.SetConnected(id, false)
	}
	return c, true, nil
}

func (m *Manager) dial(c *conn) error {
	url := m.cfg.URLFor(c.id)
	log := m.log.With().Str("character", string(c.id)).Logger()
	log.Debug().Str("url", url).Msg("dialing")

	ws, resp, err := m.dialer.DialContext(c.dialCtx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	c.cancelDial()
	if err != nil {
		c.close(err)
		log.Warn().Err(err).Msg("connect failed")
		return oops.In("client").With("character", string(c.id)).Wrapf(err, "dial")
	}

	if !c.open(ws) {
		_ = ws.Close()
		return ErrDisconnected
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		c.close(ErrManagerClosed)
		return ErrManagerClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()

	m.markConnected(c)
	m.onOpened(c.id)
	log.Info().Msg("connected")

	go func() {
		defer m.wg.Done()
		c.readLoop()
	}()
	return nil
}

// Disconnect closes the character's socket. The session itself is kept.
func (m *Manager) Disconnect(id session.CharacterID) {
	m.mu.Lock()
	c := m.conns[id]
	m.mu.Unlock()
	if c != nil {
		c.close(nil)
	}
}

func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	conns := make([]*conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.close(nil)
	}
}

// Send writes one text command on the character's open socket. Nothing is
// buffered when the socket is not open.
func (m *Manager) Send(id session.CharacterID, text string) error {
	m.mu.Lock()
	c := m.conns[id]
	m.mu.Unlock()
	if c == nil {
		return ErrNotOpen
	}

	frame := protocol.Encode(text)
	if err := c.write(frame); err != nil {
		return err
	}
	m.recordFrame(id, framelog.Outbound, frame)
	return nil
}

func (m *Manager) State(id session.CharacterID) ConnState {
	m.mu.Lock()
	c := m.conns[id]
	m.mu.Unlock()
	if c == nil {
		return StateIdle
	}
	return c.State()
}

// Status lists every character that has a socket or a recorded history,
// ordered by id.
func (m *Manager) Status() []Status {
	m.mu.Lock()
	conns := make(map[string]*conn, len(m.conns))
	for id, c := range m.conns {
		conns[string(id)] = c
	}
	history := make(map[string]persistedConnection, len(m.history))
	for k, v := range m.history {
		history[k] = v
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(history))
	for id := range history {
		ids = append(ids, id)
	}
	for id := range conns {
		if _, ok := history[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		h := history[id]
		st := Status{
			Character:          id,
			State:              StateIdle,
			Connects:           h.Connects,
			LastConnectedAt:    h.LastConnectedAt,
			LastDisconnectedAt: h.LastDisconnectedAt,
			LastError:          h.LastError,
		}
		if c := conns[id]; c != nil {
			st.State = c.State()
		}
		out = append(out, st)
	}
	return out
}

// markConnected and markDisconnected only touch the session when c is still
// the character's current socket, so a stale socket cannot override a newer one.
func (m *Manager) markConnected(c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conns[c.id] == c && c.State() == StateOpen {
		m.store.SetConnected(c.id, true)
	}
}

func (m *Manager) markDisconnected(c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conns[c.id] == c {
		m.store.SetConnected(c.id, false)
	}
}

// route decodes one inbound frame and hands it to the store.
func (m *Manager) route(id session.CharacterID, msg []byte) {
	m.recordFrame(id, framelog.Inbound, msg)

	ev := protocol.Decode(msg)
	switch e := ev.(type) {
	case protocol.RouletteResult:
		if m.cfg.OnRoulette != nil {
			m.cfg.OnRoulette(id, e)
		}
		return
	case protocol.Malformed:
		m.log.Debug().Str("character", string(id)).Str("reason", e.Reason).Msg("malformed frame")
	}
	if !m.store.ApplyEvent(id, ev) {
		m.log.Debug().Str("character", string(id)).Str("kind", string(ev.Kind())).Msg("frame for unknown session dropped")
	}
}

func (m *Manager) recordFrame(id session.CharacterID, dir framelog.Direction, frame []byte) {
	if m.cfg.Frames == nil {
		return
	}
	if err := m.cfg.Frames.Record(string(id), dir, frame); err != nil {
		m.log.Warn().Err(err).Str("character", string(id)).Msg("frame log write failed")
	}
}

func (m *Manager) onOpened(id session.CharacterID) {
	m.updateHistory(id, func(p *persistedConnection) {
		p.Connects++
		p.LastConnectedAt = m.cfg.Now().UTC().Format(time.RFC3339Nano)
		p.LastError = ""
	})
}

func (m *Manager) onClosed(id session.CharacterID, cause error) {
	m.updateHistory(id, func(p *persistedConnection) {
		p.LastDisconnectedAt = m.cfg.Now().UTC().Format(time.RFC3339Nano)
		if cause != nil {
			p.LastError = cause.Error()
		}
	})
}

func (m *Manager) updateHistory(id session.CharacterID, fn func(p *persistedConnection)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.history[string(id)]
	fn(&p)
	m.history[string(id)] = p

	if m.cfg.StateFile == "" {
		return
	}
	b, err := json.MarshalIndent(m.history, "", "  ")
	if err != nil {
		return
	}
	if err := writeFileAtomic(m.cfg.StateFile, append(b, '\n')); err != nil {
		m.log.Warn().Err(err).Msg("state file write failed")
	}
}
