package protocol

import (
	"bytes"
	"encoding/json"
)

// Inbound frame types.
const (
	TypeText            = "text"
	TypeLoggedIn        = "logged_in"
	TypeVNMessage       = "vn_message"
	TypeMessageReaction = "message_reaction"
	TypeCommands        = "commands"
	TypeRoomState       = "room_state"
	TypeScene           = "scene"
	TypeCommandError    = "command_error"
	TypeRouletteResult  = "roulette_result"
)

// Frame is one unit of wire traffic: [type, args, kwargs].
// Args and Kwargs hold raw JSON so decoding of each slot stays lazy.
type Frame struct {
	Type   string
	Args   []json.RawMessage
	Kwargs map[string]json.RawMessage
}

// SplitFrame parses the outer tuple shape. Kwargs is optional on the wire and
// defaults to an empty mapping.
func SplitFrame(b []byte) (Frame, string, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return Frame{}, ReasonNotArray, false
	}
	if len(parts) < 2 {
		return Frame{}, ReasonShortFrame, false
	}
	var f Frame
	if err := json.Unmarshal(parts[0], &f.Type); err != nil {
		return Frame{}, ReasonBadType, false
	}
	if isNull(parts[1]) {
		return Frame{}, ReasonBadArgs, false
	}
	if err := json.Unmarshal(parts[1], &f.Args); err != nil {
		return Frame{}, ReasonBadArgs, false
	}
	f.Kwargs = map[string]json.RawMessage{}
	if len(parts) > 2 && !isNull(parts[2]) {
		if err := json.Unmarshal(parts[2], &f.Kwargs); err != nil {
			return Frame{}, ReasonBadKwargs, false
		}
		if f.Kwargs == nil {
			f.Kwargs = map[string]json.RawMessage{}
		}
	}
	return f, "", true
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// toString renders a wire value the way the server's text helpers do: strings
// pass through, anything else becomes its compact JSON text.
func toString(raw json.RawMessage) string {
	if isNull(raw) {
		return "null"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// truthy mirrors loose truthiness for optional wire flags.
func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
