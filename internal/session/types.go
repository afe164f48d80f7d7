// Package session holds the per-character client state and the reducers that
// fold decoded wire events into it.
package session

import (
	"time"

	"arxclient.ai/internal/protocol"
)

// CharacterID identifies a locally controlled character. It is the key every
// connection, session and patch is multiplexed on.
type CharacterID string

type EntryKind string

const (
	KindSystem  EntryKind = "system"
	KindChat    EntryKind = "chat"
	KindAction  EntryKind = "action"
	KindText    EntryKind = "text"
	KindChannel EntryKind = "channel"
	KindError   EntryKind = "error"
)

type TranscriptEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Kind      EntryKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

type Session struct {
	Connected  bool                   `json:"connected"`
	Transcript []TranscriptEntry      `json:"transcript"`
	Unread     int                    `json:"unread"`
	Commands   []protocol.CommandSpec `json:"commands"`
	Room       *protocol.Room         `json:"room,omitempty"`
	Scene      *protocol.Scene        `json:"scene,omitempty"`
}

// Clone returns a deep copy safe to hand to readers outside the store.
func (s Session) Clone() Session {
	out := s
	out.Transcript = append([]TranscriptEntry(nil), s.Transcript...)
	out.Commands = protocol.CloneCommands(s.Commands)
	if s.Room != nil {
		r := s.Room.Clone()
		out.Room = &r
	}
	if s.Scene != nil {
		sc := *s.Scene
		out.Scene = &sc
	}
	return out
}

// Table is a read-only snapshot of every session plus the active character.
// Active is empty when no character is foregrounded.
type Table struct {
	Sessions map[CharacterID]Session `json:"sessions"`
	Active   CharacterID             `json:"active,omitempty"`
}

func newSession() *Session {
	return &Session{
		Transcript: []TranscriptEntry{},
		Commands:   []protocol.CommandSpec{},
	}
}
