package protocol

// Malformed reasons. Stable strings so transcripts and logs can be grepped.
const (
	// Outer tuple shape.
	ReasonNotArray   = "not a json array"
	ReasonShortFrame = "frame shorter than [type, args]"
	ReasonBadType    = "frame type is not a string"
	ReasonBadArgs    = "frame args is not an array"
	ReasonBadKwargs  = "frame kwargs is not an object"

	// Per-type payloads.
	ReasonUnknownType = "unknown frame type"
	ReasonBadCommands = "commands payload failed validation"
	ReasonBadRoom     = "room_state payload invalid"
	ReasonBadScene    = "scene payload invalid"
	ReasonBadCmdError = "command_error payload invalid"
)

var knownReasons = map[string]struct{}{
	ReasonNotArray:    {},
	ReasonShortFrame:  {},
	ReasonBadType:     {},
	ReasonBadArgs:     {},
	ReasonBadKwargs:   {},
	ReasonUnknownType: {},
	ReasonBadCommands: {},
	ReasonBadRoom:     {},
	ReasonBadScene:    {},
	ReasonBadCmdError: {},
}

func IsKnownReason(r string) bool {
	_, ok := knownReasons[r]
	return ok
}
