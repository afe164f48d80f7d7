package protocol

import (
	"bytes"
	"encoding/json"
)

// Decode turns one inbound frame into an Event. It never fails: anything it
// cannot interpret comes back as Malformed carrying the original bytes.
func Decode(b []byte) Event {
	f, reason, ok := SplitFrame(b)
	if !ok {
		return malformed(b, reason)
	}

	switch f.Type {
	case TypeText:
		// Empty args are not an empty message; they fall through to the
		// unknown-type rule.
		if len(f.Args) > 0 {
			return Text{Content: toString(f.Args[0]), IsChannel: truthy(f.Kwargs["from_channel"])}
		}

	case TypeLoggedIn:
		return LoggedIn{}

	case TypeVNMessage:
		text := ""
		if raw, ok := f.Kwargs["text"]; ok && !isNull(raw) {
			text = toString(raw)
		}
		return ActionMessage{Content: text}

	case TypeMessageReaction:
		return Reaction{Raw: f.Kwargs}

	case TypeCommands:
		if len(f.Args) == 0 {
			return malformed(b, ReasonBadCommands)
		}
		cmds, err := decodeCommands(f.Args[0])
		if err != nil {
			return malformed(b, ReasonBadCommands)
		}
		return CommandCatalog{Commands: cmds}

	case TypeRoomState:
		raw, ok := f.Kwargs["room"]
		if !ok && len(f.Args) > 0 {
			raw = f.Args[0]
		}
		room, err := decodeRoom(raw)
		if err != nil {
			return malformed(b, ReasonBadRoom)
		}
		scene, err := decodeScene(f.Kwargs["scene"])
		if err != nil {
			return malformed(b, ReasonBadRoom)
		}
		return RoomState{Room: room, Scene: scene}

	case TypeScene:
		var action SceneAction
		if err := json.Unmarshal(f.Kwargs["action"], &action); err != nil || !action.Valid() {
			return malformed(b, ReasonBadScene)
		}
		scene, err := decodeScene(f.Kwargs["scene"])
		if action == SceneEnd {
			// The payload is informational only on end.
			if err != nil {
				scene = nil
			}
			return SceneChange{Action: action, Scene: scene}
		}
		if err != nil || scene == nil {
			return malformed(b, ReasonBadScene)
		}
		return SceneChange{Action: action, Scene: scene}

	case TypeCommandError:
		var p struct {
			Command *string `json:"command"`
			Error   *string `json:"error"`
		}
		raw, err := json.Marshal(f.Kwargs)
		if err != nil || json.Unmarshal(raw, &p) != nil || p.Error == nil {
			return malformed(b, ReasonBadCmdError)
		}
		return CommandError{Command: deref(p.Command), Error: *p.Error}

	case TypeRouletteResult:
		return RouletteResult{Args: f.Args, Kwargs: f.Kwargs}
	}

	return malformed(b, ReasonUnknownType)
}

func malformed(b []byte, reason string) Malformed {
	return Malformed{Raw: append(json.RawMessage(nil), b...), Reason: reason}
}

// Encode renders a player intent as the only outbound shape: ["text", [s], {}].
func Encode(text string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string slice cannot fail.
	_ = enc.Encode([]any{TypeText, []string{text}, struct{}{}})
	return bytes.TrimRight(buf.Bytes(), "\n")
}
