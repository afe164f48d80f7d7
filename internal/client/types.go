package client

import "errors"

// ConnState is the lifecycle of one character's socket.
type ConnState string

const (
	StateIdle       ConnState = "idle"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosed     ConnState = "closed"
)

var (
	// ErrNotOpen is returned by Send when the character's socket is not open.
	// Nothing is queued for later delivery.
	ErrNotOpen = errors.New("connection not open")
	// ErrDisconnected is returned by Connect when the connection was dropped
	// while the handshake was still running.
	ErrDisconnected   = errors.New("disconnected during handshake")
	ErrManagerClosed  = errors.New("client manager closed")
	ErrEmptyCharacter = errors.New("empty character id")
)

// Status is one character's connection as reported to collaborators.
type Status struct {
	Character          string    `json:"character"`
	State              ConnState `json:"state"`
	Connects           int       `json:"connects"`
	LastConnectedAt    string    `json:"last_connected_at,omitempty"`
	LastDisconnectedAt string    `json:"last_disconnected_at,omitempty"`
	LastError          string    `json:"last_error,omitempty"`
}
