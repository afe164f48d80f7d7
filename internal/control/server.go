// Package control exposes the session layer to local collaborators over
// JSON-RPC on HTTP.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"arxclient.ai/internal/client"
	"arxclient.ai/internal/roster"
	"arxclient.ai/internal/session"
)

// Connections is the slice of the connection manager the control surface drives.
type Connections interface {
	Connect(ctx context.Context, id session.CharacterID) error
	Reconnect(ctx context.Context, id session.CharacterID) error
	Disconnect(id session.CharacterID)
	DisconnectAll()
	Send(id session.CharacterID, text string) error
	Status() []client.Status
}

type History interface {
	History(ctx context.Context, id session.CharacterID, limit int) ([]session.TranscriptEntry, error)
}

type Roster interface {
	Characters() []roster.Character
	LastPoll() (time.Time, string)
}

type Config struct {
	Store       *session.Store
	Connections Connections
	// History and Roster are optional; their methods report unavailable
	// when unset.
	History History
	Roster  Roster
	Logger  zerolog.Logger
}

type Server struct {
	store   *session.Store
	conns   Connections
	history History
	roster  Roster
	log     zerolog.Logger
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, oops.In("control").Errorf("nil session store")
	}
	if cfg.Connections == nil {
		return nil, oops.In("control").Errorf("nil connections")
	}
	return &Server{
		store:   cfg.Store,
		conns:   cfg.Connections,
		history: cfg.History,
		roster:  cfg.Roster,
		log:     cfg.Logger.With().Str("component", "control").Logger(),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/rpc", s.handleRPC)
	return mux
}

func (s *Server) handleRPC(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad body"))
		return
	}
	_ = r.Body.Close()

	var resp rpcResponse
	req, err := parseRPCRequest(body)
	if err != nil {
		resp = reply(nil, nil, &rpcError{Code: codeParse, Message: "bad jsonrpc request", Data: err.Error()})
	} else {
		start := time.Now()
		resp = s.dispatch(r.Context(), req)
		ev := s.log.Debug()
		if resp.Error != nil {
			ev = s.log.Info().Int("code", resp.Error.Code).Str("error", resp.Error.Message)
		}
		ev.Str("method", req.Method).Dur("took", time.Since(start)).Msg("rpc")
	}

	rw.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

type handlerFunc func(s *Server, ctx context.Context, params json.RawMessage) (any, error)

func (s *Server) dispatch(ctx context.Context, req rpcRequest) rpcResponse {
	h, ok := methods[req.Method]
	if !ok {
		return reply(req.ID, nil, &rpcError{Code: codeMethodNotFound, Message: "method not found", Data: map[string]any{"method": req.Method}})
	}
	out, err := h(s, ctx, req.Params)
	if err != nil {
		return reply(req.ID, nil, toRPCError(err))
	}
	return reply(req.ID, out, nil)
}

// JSON-RPC error codes. The -320xx block is ours.
const (
	codeParse          = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeFailed         = -32000
	codeUnknownSession = -32001
	codeNotOpen        = -32002
	codeUnavailable    = -32003
)

func (e *rpcError) Error() string { return e.Message }

func toRPCError(err error) *rpcError {
	var re *rpcError
	switch {
	case errors.As(err, &re):
		return re
	case errors.Is(err, client.ErrNotOpen):
		return &rpcError{Code: codeNotOpen, Message: err.Error()}
	default:
		return &rpcError{Code: codeFailed, Message: err.Error()}
	}
}

// Methods lists every supported method name.
func Methods() []string {
	return append([]string(nil), methodOrder...)
}

func invalidParams(msg string, data any) error {
	return &rpcError{Code: codeInvalidParams, Message: msg, Data: data}
}

func unknownSession(id session.CharacterID) error {
	return &rpcError{Code: codeUnknownSession, Message: "unknown session", Data: map[string]any{"character": string(id)}}
}

func unavailable(what string) error {
	return &rpcError{Code: codeUnavailable, Message: what + " not configured"}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return invalidParams("missing params", nil)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidParams("bad params", err.Error())
	}
	return nil
}
