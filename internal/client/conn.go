package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"arxclient.ai/internal/session"
)

// conn is one socket attempt for one character. It moves
// connecting -> open -> closed at most once and is never reused.
type conn struct {
	id session.CharacterID
	m  *Manager

	dialCtx    context.Context
	cancelDial context.CancelFunc

	mu    sync.Mutex
	state ConnState
	ws    *websocket.Conn

	writeMu sync.Mutex
}

func newConn(ctx context.Context, m *Manager, id session.CharacterID) *conn {
	dctx, cancel := context.WithCancel(ctx)
	return &conn{
		id:         id,
		m:          m,
		dialCtx:    dctx,
		cancelDial: cancel,
		state:      StateConnecting,
	}
}

func (c *conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// open installs the socket. It reports false when the attempt was closed
// while the handshake ran.
func (c *conn) open(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		return false
	}
	c.ws = ws
	c.state = StateOpen
	return true
}

// close is idempotent. cause is nil for a requested disconnect.
func (c *conn) close(cause error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	ws := c.ws
	c.mu.Unlock()

	c.cancelDial()
	if ws != nil {
		c.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = ws.Close()
	}

	c.m.markDisconnected(c)
	c.m.onClosed(c.id, cause)

	ev := c.m.log.Info().Str("character", string(c.id))
	if cause != nil {
		ev = c.m.log.Warn().Str("character", string(c.id)).Err(cause)
	}
	ev.Msg("disconnected")
}

func (c *conn) write(frame []byte) error {
	c.mu.Lock()
	ws, state := c.ws, c.state
	c.mu.Unlock()
	if state != StateOpen || ws == nil {
		return ErrNotOpen
	}

	c.writeMu.Lock()
	_ = ws.SetWriteDeadline(time.Now().Add(c.m.cfg.WriteTimeout))
	err := ws.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.close(err)
		return oops.In("client").With("character", string(c.id)).Wrapf(err, "send")
	}
	return nil
}

func (c *conn) readLoop() {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	for {
		if c.State() != StateOpen {
			return
		}
		if rt := c.m.cfg.ReadTimeout; rt > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(rt))
		}
		_, msg, err := ws.ReadMessage()
		if err != nil {
			c.close(readError(err))
			return
		}
		c.m.route(c.id, msg)
	}
}

// readError drops the error for a clean close from the server.
func readError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
		return nil
	}
	return err
}
