package protocol

import "encoding/json"

// EventKind names a decoded event variant.
type EventKind string

const (
	KindText           EventKind = "text"
	KindLoggedIn       EventKind = "logged_in"
	KindActionMessage  EventKind = "action_message"
	KindReaction       EventKind = "reaction"
	KindCommandCatalog EventKind = "command_catalog"
	KindRoomState      EventKind = "room_state"
	KindSceneUpdate    EventKind = "scene_update"
	KindCommandError   EventKind = "command_error"
	KindRouletteResult EventKind = "roulette_result"
	KindMalformed      EventKind = "malformed"
)

// Event is the closed set of values Decode produces. The unexported marker
// keeps other packages from adding variants.
type Event interface {
	Kind() EventKind
	isEvent()
}

type Text struct {
	Content   string
	IsChannel bool
}

type LoggedIn struct{}

// ActionMessage is a narrative ("vn_message") line.
type ActionMessage struct {
	Content string
}

type Reaction struct {
	Raw map[string]json.RawMessage
}

type CommandCatalog struct {
	Commands []CommandSpec
}

// RoomState carries a full room snapshot. Scene is nil when no scene is
// running at the location.
type RoomState struct {
	Room  Room
	Scene *Scene
}

type SceneAction string

const (
	SceneStart  SceneAction = "start"
	SceneUpdate SceneAction = "update"
	SceneEnd    SceneAction = "end"
)

func (a SceneAction) Valid() bool {
	switch a {
	case SceneStart, SceneUpdate, SceneEnd:
		return true
	default:
		return false
	}
}

// SceneChange is the decoded "scene" frame. Scene may be nil only for SceneEnd.
type SceneChange struct {
	Action SceneAction
	Scene  *Scene
}

type CommandError struct {
	Command string
	Error   string
}

// RouletteResult is decoded for hand-off to a separate presentation queue; it
// never changes session state.
type RouletteResult struct {
	Args   []json.RawMessage
	Kwargs map[string]json.RawMessage
}

// Malformed wraps a frame no rule recognized. Raw is the frame as received.
type Malformed struct {
	Raw    json.RawMessage
	Reason string
}

func (Text) Kind() EventKind           { return KindText }
func (LoggedIn) Kind() EventKind       { return KindLoggedIn }
func (ActionMessage) Kind() EventKind  { return KindActionMessage }
func (Reaction) Kind() EventKind       { return KindReaction }
func (CommandCatalog) Kind() EventKind { return KindCommandCatalog }
func (RoomState) Kind() EventKind      { return KindRoomState }
func (SceneChange) Kind() EventKind    { return KindSceneUpdate }
func (CommandError) Kind() EventKind   { return KindCommandError }
func (RouletteResult) Kind() EventKind { return KindRouletteResult }
func (Malformed) Kind() EventKind      { return KindMalformed }

func (Text) isEvent()           {}
func (LoggedIn) isEvent()       {}
func (ActionMessage) isEvent()  {}
func (Reaction) isEvent()       {}
func (CommandCatalog) isEvent() {}
func (RoomState) isEvent()      {}
func (SceneChange) isEvent()    {}
func (CommandError) isEvent()   {}
func (RouletteResult) isEvent() {}
func (Malformed) isEvent()      {}
