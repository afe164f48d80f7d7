package session

import "arxclient.ai/internal/protocol"

// Patch describes a change to exactly one session. Each Set flag guards its
// field so "set to absent" and "leave alone" stay distinct.
type Patch struct {
	SetRoom bool
	Room    *protocol.Room

	SetScene bool
	Scene    *protocol.Scene

	SetCommands bool
	Commands    []protocol.CommandSpec

	// Append is stamped with an id and timestamp by the store on insertion.
	Append *TranscriptEntry
}

func (p Patch) IsZero() bool {
	return !p.SetRoom && !p.SetScene && !p.SetCommands && p.Append == nil
}

// SceneConfirmation builds the patch for a scene change confirmed out of band
// (e.g. a REST "start scene" response). It follows the same rules as the wire.
func SceneConfirmation(action protocol.SceneAction, scene *protocol.Scene) Patch {
	return sceneChangePatch(protocol.SceneChange{Action: action, Scene: scene})
}

// RoomConfirmation builds the patch for a room snapshot obtained out of band.
func RoomConfirmation(room protocol.Room, scene *protocol.Scene) Patch {
	return roomStatePatch(protocol.RoomState{Room: room, Scene: scene})
}
