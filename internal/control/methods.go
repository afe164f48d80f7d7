package control

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"arxclient.ai/internal/command"
	"arxclient.ai/internal/protocol"
	"arxclient.ai/internal/session"
)

var methods = map[string]handlerFunc{
	"connect":          (*Server).connect,
	"reconnect":        (*Server).reconnect,
	"disconnect":       (*Server).disconnect,
	"disconnect_all":   (*Server).disconnectAll,
	"send":             (*Server).send,
	"send_command":     (*Server).sendCommand,
	"start_session":    (*Server).startSession,
	"set_active":       (*Server).setActive,
	"clear_transcript": (*Server).clearTranscript,
	"reset_all":        (*Server).resetAll,
	"get_sessions":     (*Server).getSessions,
	"get_session":      (*Server).getSession,
	"get_commands":     (*Server).getCommands,
	"apply_scene":      (*Server).applyScene,
	"apply_room":       (*Server).applyRoom,
	"get_status":       (*Server).getStatus,
	"list_characters":  (*Server).listCharacters,
	"history":          (*Server).historyMethod,
}

var methodOrder = []string{
	"connect", "reconnect", "disconnect", "disconnect_all",
	"send", "send_command",
	"start_session", "set_active", "clear_transcript", "reset_all",
	"get_sessions", "get_session", "get_commands",
	"apply_scene", "apply_room",
	"get_status", "list_characters", "history",
}

var okResult = map[string]any{"ok": true}

type characterParams struct {
	Character string `json:"character"`
}

func characterParam(raw json.RawMessage) (session.CharacterID, error) {
	var p characterParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	return characterID(p.Character)
}

// characterID normalizes the character every method addresses.
func characterID(raw string) (session.CharacterID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", invalidParams("missing character", nil)
	}
	return session.CharacterID(id), nil
}

func (s *Server) knownCharacter(raw json.RawMessage) (session.CharacterID, error) {
	id, err := characterParam(raw)
	if err != nil {
		return "", err
	}
	if !s.store.Has(id) {
		return "", unknownSession(id)
	}
	return id, nil
}

// connect starts the session when needed so inbound frames have somewhere
// to land, then dials.
func (s *Server) connect(ctx context.Context, raw json.RawMessage) (any, error) {
	id, err := characterParam(raw)
	if err != nil {
		return nil, err
	}
	if !s.store.Has(id) {
		s.store.StartSession(id)
	}
	if err := s.conns.Connect(ctx, id); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) reconnect(ctx context.Context, raw json.RawMessage) (any, error) {
	id, err := s.knownCharacter(raw)
	if err != nil {
		return nil, err
	}
	if err := s.conns.Reconnect(ctx, id); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) disconnect(_ context.Context, raw json.RawMessage) (any, error) {
	id, err := characterParam(raw)
	if err != nil {
		return nil, err
	}
	s.conns.Disconnect(id)
	return okResult, nil
}

func (s *Server) disconnectAll(context.Context, json.RawMessage) (any, error) {
	s.conns.DisconnectAll()
	return okResult, nil
}

func (s *Server) send(_ context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Character string `json:"character"`
		Text      string `json:"text"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := characterID(p.Character)
	if err != nil {
		return nil, err
	}
	if err := s.conns.Send(id, p.Text); err != nil {
		return nil, err
	}
	return okResult, nil
}

// sendCommand renders a command from the session's catalog and sends it.
func (s *Server) sendCommand(_ context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Character string            `json:"character"`
		Action    string            `json:"action"`
		Fields    map[string]string `json:"fields"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := characterID(p.Character)
	if err != nil {
		return nil, err
	}
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, unknownSession(id)
	}

	var spec *protocol.CommandSpec
	for i := range sess.Commands {
		if sess.Commands[i].Action == p.Action {
			spec = &sess.Commands[i]
			break
		}
	}
	if spec == nil {
		return nil, invalidParams("unknown action", map[string]any{"action": p.Action})
	}
	if missing := command.MissingRequired(*spec, p.Fields); len(missing) > 0 {
		return nil, invalidParams("missing required fields", map[string]any{"missing": missing})
	}

	text := command.FormatCommand(*spec, p.Fields)
	if err := s.conns.Send(id, text); err != nil {
		return nil, err
	}
	return map[string]any{"text": text}, nil
}

func (s *Server) startSession(_ context.Context, raw json.RawMessage) (any, error) {
	id, err := characterParam(raw)
	if err != nil {
		return nil, err
	}
	s.store.StartSession(id)
	return okResult, nil
}

func (s *Server) setActive(_ context.Context, raw json.RawMessage) (any, error) {
	id, err := characterParam(raw)
	if err != nil {
		return nil, err
	}
	if !s.store.SetActive(id) {
		return nil, unknownSession(id)
	}
	return okResult, nil
}

func (s *Server) clearTranscript(_ context.Context, raw json.RawMessage) (any, error) {
	id, err := characterParam(raw)
	if err != nil {
		return nil, err
	}
	if !s.store.ClearTranscript(id) {
		return nil, unknownSession(id)
	}
	return okResult, nil
}

// resetAll is logout: every socket is dropped, then every session.
func (s *Server) resetAll(context.Context, json.RawMessage) (any, error) {
	s.conns.DisconnectAll()
	s.store.ResetAll()
	return okResult, nil
}

func (s *Server) getSessions(context.Context, json.RawMessage) (any, error) {
	return s.store.Snapshot(), nil
}

func (s *Server) getSession(_ context.Context, raw json.RawMessage) (any, error) {
	id, err := characterParam(raw)
	if err != nil {
		return nil, err
	}
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, unknownSession(id)
	}
	return sess, nil
}

type commandView struct {
	protocol.CommandSpec
	Icon   string         `json:"icon"`
	Widget command.Widget `json:"widget"`
	Known  bool           `json:"known"`
}

// getCommands returns the session's catalog with the affordance each command
// is offered with.
func (s *Server) getCommands(_ context.Context, raw json.RawMessage) (any, error) {
	id, err := characterParam(raw)
	if err != nil {
		return nil, err
	}
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, unknownSession(id)
	}
	out := make([]commandView, 0, len(sess.Commands))
	for _, c := range sess.Commands {
		aff := command.LookupAction(c.Action)
		out = append(out, commandView{
			CommandSpec: c,
			Icon:        command.IconFor(c.Action, c.Icon),
			Widget:      aff.Widget,
			Known:       aff.Known,
		})
	}
	return out, nil
}

// applyScene folds a REST scene confirmation into the session the same way a
// pushed scene frame would be. Start and update must carry a scene.
func (s *Server) applyScene(_ context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Character string          `json:"character"`
		Action    string          `json:"action"`
		Scene     *protocol.Scene `json:"scene"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	action := protocol.SceneAction(p.Action)
	if !action.Valid() {
		return nil, invalidParams("bad scene action", map[string]any{"action": p.Action})
	}
	if action != protocol.SceneEnd && p.Scene == nil {
		return nil, invalidParams("missing scene", map[string]any{"action": p.Action})
	}
	id, err := characterID(p.Character)
	if err != nil {
		return nil, err
	}
	if !s.store.ApplyPatch(id, session.SceneConfirmation(action, p.Scene)) {
		return nil, unknownSession(id)
	}
	return okResult, nil
}

func (s *Server) applyRoom(_ context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Character string          `json:"character"`
		Room      *protocol.Room  `json:"room"`
		Scene     *protocol.Scene `json:"scene"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Room == nil {
		return nil, invalidParams("missing room", nil)
	}
	id, err := characterID(p.Character)
	if err != nil {
		return nil, err
	}
	if !s.store.ApplyPatch(id, session.RoomConfirmation(*p.Room, p.Scene)) {
		return nil, unknownSession(id)
	}
	return okResult, nil
}

func (s *Server) getStatus(context.Context, json.RawMessage) (any, error) {
	return map[string]any{
		"active":      s.store.Active(),
		"connections": s.conns.Status(),
	}, nil
}

func (s *Server) listCharacters(context.Context, json.RawMessage) (any, error) {
	if s.roster == nil {
		return nil, unavailable("roster")
	}
	out := map[string]any{"characters": s.roster.Characters()}
	if at, errText := s.roster.LastPoll(); !at.IsZero() {
		out["last_poll"] = at.UTC().Format(time.RFC3339)
		if errText != "" {
			out["last_error"] = errText
		}
	}
	return out, nil
}

func (s *Server) historyMethod(ctx context.Context, raw json.RawMessage) (any, error) {
	if s.history == nil {
		return nil, unavailable("history")
	}
	var p struct {
		Character string `json:"character"`
		Limit     int    `json:"limit"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := characterID(p.Character)
	if err != nil {
		return nil, err
	}
	return s.history.History(ctx, id, p.Limit)
}
