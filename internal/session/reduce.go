package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"arxclient.ai/internal/protocol"
)

// LoggedInContent is the transcript line recorded for a logged_in frame.
const LoggedInContent = "You are now logged in."

// Reduce computes the patch an event implies for one character. It is pure:
// it reads cur only to decide whether the session exists and never creates
// one, so an absent session always yields a zero patch.
func Reduce(id CharacterID, cur *Session, ev protocol.Event) Patch {
	if cur == nil || ev == nil {
		return Patch{}
	}
	switch e := ev.(type) {
	case protocol.RoomState:
		return roomStatePatch(e)
	case protocol.SceneChange:
		return sceneChangePatch(e)
	case protocol.CommandCatalog:
		return Patch{SetCommands: true, Commands: protocol.CloneCommands(e.Commands)}
	case protocol.RouletteResult:
		return Patch{}
	}

	content, kind, ok := classify(ev)
	if !ok {
		return Patch{}
	}
	return Patch{Append: &TranscriptEntry{Content: content, Kind: kind}}
}

func roomStatePatch(e protocol.RoomState) Patch {
	room := e.Room.Clone()
	p := Patch{SetRoom: true, Room: &room, SetScene: true}
	if e.Scene != nil {
		sc := *e.Scene
		p.Scene = &sc
	}
	return p
}

func sceneChangePatch(e protocol.SceneChange) Patch {
	// End always clears, whatever the payload carries.
	if e.Action == protocol.SceneEnd {
		return Patch{SetScene: true}
	}
	// Start and update need a scene; without one nothing changes.
	if e.Scene == nil {
		return Patch{}
	}
	sc := *e.Scene
	return Patch{SetScene: true, Scene: &sc}
}

// classify maps transcript-producing events to their line and kind.
func classify(ev protocol.Event) (string, EntryKind, bool) {
	switch e := ev.(type) {
	case protocol.Text:
		if e.IsChannel {
			return e.Content, KindChannel, true
		}
		return e.Content, KindText, true
	case protocol.LoggedIn:
		return LoggedInContent, KindSystem, true
	case protocol.ActionMessage:
		return e.Content, KindAction, true
	case protocol.Reaction:
		return reactionContent(e), KindSystem, true
	case protocol.CommandError:
		if e.Command == "" {
			return e.Error, KindSystem, true
		}
		return fmt.Sprintf("%s: %s", e.Command, e.Error), KindSystem, true
	case protocol.Malformed:
		return malformedContent(e), KindError, true
	default:
		return "", "", false
	}
}

// reactionContent renders the reaction kwargs with sorted keys so identical
// frames produce identical lines.
func reactionContent(e protocol.Reaction) string {
	keys := make([]string, 0, len(e.Raw))
	for k := range e.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+compact(e.Raw[k]))
	}
	return "reaction: " + strings.Join(parts, " ")
}

func malformedContent(e protocol.Malformed) string {
	raw := compact(e.Raw)
	if raw == "" {
		raw = "<empty>"
	}
	if e.Reason == "" {
		return "unrecognized message: " + raw
	}
	return fmt.Sprintf("unrecognized message (%s): %s", e.Reason, raw)
}

func compact(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.TrimSpace(string(raw))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return strings.TrimSpace(string(raw))
	}
	return string(b)
}
