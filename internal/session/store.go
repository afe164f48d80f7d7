package session

import (
	"crypto/rand"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"arxclient.ai/internal/protocol"
)

type StoreConfig struct {
	// Now stamps transcript entries. Defaults to time.Now.
	Now func() time.Time
	// OnAppend observes every inserted transcript entry, in insertion order
	// per character. It runs outside the store lock.
	OnAppend func(id CharacterID, e TranscriptEntry)
}

// Store is the single owner of all session state. Every mutation goes through
// its methods and is applied atomically with respect to readers.
type Store struct {
	cfg StoreConfig

	mu       sync.RWMutex
	sessions map[CharacterID]*Session
	active   CharacterID
	entropy  io.Reader
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		cfg:      cfg,
		sessions: map[CharacterID]*Session{},
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// StartSession creates the session if needed, foregrounds it and zeroes its
// unread count. Existing transcript, room, scene and commands are kept.
func (s *Store) StartSession(id CharacterID) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	if sess == nil {
		sess = newSession()
		s.sessions[id] = sess
	}
	sess.Unread = 0
	s.active = id
}

// SetActive foregrounds a known session. Unknown ids are ignored.
func (s *Store) SetActive(id CharacterID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	if sess == nil {
		return false
	}
	sess.Unread = 0
	s.active = id
	return true
}

func (s *Store) SetConnected(id CharacterID, connected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	if sess == nil {
		return false
	}
	sess.Connected = connected
	return true
}

// ApplyPatch applies p to an existing session. It reports whether anything
// was applied.
func (s *Store) ApplyPatch(id CharacterID, p Patch) bool {
	s.mu.Lock()
	appended, ok := s.applyLocked(id, p)
	s.mu.Unlock()
	s.notify(id, appended)
	return ok
}

// ApplyEvent reduces ev against the current session and applies the result
// under a single lock.
func (s *Store) ApplyEvent(id CharacterID, ev protocol.Event) bool {
	s.mu.Lock()
	p := Reduce(id, s.sessions[id], ev)
	appended, ok := s.applyLocked(id, p)
	s.mu.Unlock()
	s.notify(id, appended)
	return ok
}

func (s *Store) applyLocked(id CharacterID, p Patch) (*TranscriptEntry, bool) {
	sess := s.sessions[id]
	if sess == nil || p.IsZero() {
		return nil, false
	}
	if p.SetRoom {
		if p.Room == nil {
			sess.Room = nil
		} else {
			r := p.Room.Clone()
			sess.Room = &r
		}
	}
	if p.SetScene {
		if p.Scene == nil {
			sess.Scene = nil
		} else {
			sc := *p.Scene
			sess.Scene = &sc
		}
	}
	if p.SetCommands {
		sess.Commands = protocol.CloneCommands(p.Commands)
		if sess.Commands == nil {
			sess.Commands = []protocol.CommandSpec{}
		}
	}
	if p.Append == nil {
		return nil, true
	}

	e := *p.Append
	now := s.cfg.Now()
	e.ID = s.newEntryID(now)
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	sess.Transcript = append(sess.Transcript, e)
	if id == s.active {
		sess.Unread = 0
	} else {
		sess.Unread++
	}
	return &e, true
}

func (s *Store) notify(id CharacterID, e *TranscriptEntry) {
	if e != nil && s.cfg.OnAppend != nil {
		s.cfg.OnAppend(id, *e)
	}
}

// ClearTranscript empties a session's transcript. Unread is left alone.
func (s *Store) ClearTranscript(id CharacterID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	if sess == nil {
		return false
	}
	sess.Transcript = []TranscriptEntry{}
	return true
}

// ResetAll drops every session and the active marker (logout).
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[CharacterID]*Session{}
	s.active = ""
}

func (s *Store) Get(id CharacterID) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessions[id]
	if sess == nil {
		return Session{}, false
	}
	return sess.Clone(), true
}

func (s *Store) Has(id CharacterID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id] != nil
}

func (s *Store) Active() CharacterID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// IDs returns the known characters in sorted order.
func (s *Store) IDs() []CharacterID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CharacterID, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) Snapshot() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := Table{Sessions: make(map[CharacterID]Session, len(s.sessions)), Active: s.active}
	for id, sess := range s.sessions {
		t.Sessions[id] = sess.Clone()
	}
	return t
}

// newEntryID clamps clocks outside the ulid range instead of panicking.
func (s *Store) newEntryID(now time.Time) string {
	var ms uint64
	if now.After(time.Unix(0, 0)) {
		ms = ulid.Timestamp(now)
	}
	if ms > ulid.MaxTime() {
		ms = ulid.MaxTime()
	}
	id, err := ulid.New(ms, s.entropy)
	if err != nil {
		id, _ = ulid.New(ms, rand.Reader)
	}
	return id.String()
}
