// Package gametest runs a scripted game server for client tests: each
// character's socket can be driven frame by frame from the test.
package gametest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const Path = "/ws/game/"

type Server struct {
	t  *testing.T
	ts *httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[string][]*Conn
	accepted chan *Conn
	refuse   map[string]bool
	stalls   map[string]chan struct{}
	held     map[string]int
}

// Conn is the server end of one character's socket.
type Conn struct {
	Character string

	ws      *websocket.Conn
	writeMu sync.Mutex
	inbox   chan []byte
	closed  chan struct{}
}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		t:        t,
		conns:    map[string][]*Conn{},
		accepted: make(chan *Conn, 64),
		refuse:   map[string]bool{},
		stalls:   map[string]chan struct{}{},
		held:     map[string]int{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handle)
	s.ts = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Close() {
	s.mu.Lock()
	var all []*Conn
	for _, cs := range s.conns {
		all = append(all, cs...)
	}
	for id, ch := range s.stalls {
		close(ch)
		delete(s.stalls, id)
	}
	s.mu.Unlock()
	for _, c := range all {
		c.Close()
	}
	s.ts.Close()
}

// URLTemplate is a client url template with a {character} placeholder.
func (s *Server) URLTemplate() string {
	return "ws" + strings.TrimPrefix(s.ts.URL, "http") + Path + "?character={character}"
}

// URLFor is the socket url for one character.
func (s *Server) URLFor(character string) string {
	return strings.ReplaceAll(s.URLTemplate(), "{character}", url.QueryEscape(character))
}

// Refuse makes the handshake for character fail with 403.
func (s *Server) Refuse(character string, refuse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse[character] = refuse
}

// Stall holds character's handshakes before the upgrade until the returned
// release func is called or the client gives up.
func (s *Server) Stall(character string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.stalls[character] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.stalls[character] == ch {
				close(ch)
				delete(s.stalls, character)
			}
		})
	}
}

// Stalled reports how many handshakes for character are currently held.
func (s *Server) Stalled(character string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[character]
}

func (s *Server) handle(rw http.ResponseWriter, r *http.Request) {
	character := r.URL.Query().Get("character")
	s.mu.Lock()
	refused := s.refuse[character]
	stall := s.stalls[character]
	if stall != nil {
		s.held[character]++
	}
	s.mu.Unlock()
	if stall != nil {
		select {
		case <-stall:
		case <-r.Context().Done():
		}
		s.mu.Lock()
		s.held[character]--
		s.mu.Unlock()
		if r.Context().Err() != nil {
			return
		}
	}
	if character == "" || refused {
		rw.WriteHeader(http.StatusForbidden)
		return
	}
	ws, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	c := &Conn{
		Character: character,
		ws:        ws,
		inbox:     make(chan []byte, 256),
		closed:    make(chan struct{}),
	}
	s.mu.Lock()
	s.conns[character] = append(s.conns[character], c)
	s.mu.Unlock()
	s.accepted <- c

	defer close(c.closed)
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		c.inbox <- msg
	}
}

// Accept waits for the next socket opened by character.
func (s *Server) Accept(character string, timeout time.Duration) *Conn {
	s.t.Helper()
	deadline := time.After(timeout)
	var skipped []*Conn
	defer func() {
		for _, c := range skipped {
			s.accepted <- c
		}
	}()
	for {
		select {
		case c := <-s.accepted:
			if c.Character == character {
				return c
			}
			skipped = append(skipped, c)
		case <-deadline:
			s.t.Fatalf("gametest: no connection from %q within %s", character, timeout)
			return nil
		}
	}
}

// Connections reports how many sockets character has opened so far.
func (s *Server) Connections(character string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns[character])
}

// Send writes one raw frame to the client.
func (c *Conn) Send(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Next returns the next frame the client sent, or nil on timeout.
func (c *Conn) Next(timeout time.Duration) []byte {
	select {
	case b := <-c.inbox:
		return b
	case <-time.After(timeout):
		return nil
	}
}

// Close drops the socket from the server side.
func (c *Conn) Close() {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	_ = c.ws.Close()
}

// Closed is closed once the client side has gone away.
func (c *Conn) Closed() <-chan struct{} { return c.closed }
