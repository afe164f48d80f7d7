package protocol

import (
	"encoding/json"
	"reflect"
	"testing"
)

const roomStateFrame = `["room_state", [], {
  "room": {
    "id": "#12",
    "name": "Hall",
    "description": "A long hall.",
    "thumbnail_url": "",
    "characters": [
      {"dbref": "#5", "name": "Ann", "thumbnail_url": "ann.png", "commands": ["look", "page"]},
      {"dbref": "#5", "name": "Ann", "commands": []},
      {"dbref": "#6", "name": "Bo"}
    ],
    "objects": [{"dbref": "#40", "name": "chest", "commands": ["open"]}],
    "exits": [{"dbref": "#41", "name": "north"}, {"dbref": "#42", "name": "south"}]
  },
  "scene": {"id": 9, "name": "Ball", "description": "Dancing", "is_owner": true}
}]`

const commandsFrame = `["commands", [[
  {
    "action": "dig",
    "prompt_template": "@dig room_name=exit_name, back_exit",
    "params_schema": {
      "room_name": {"required": true, "widget": "text"},
      "exit_name": {"required": true, "widget": "text"},
      "back_exit": {"required": false, "widget": "text", "options_endpoint": null}
    },
    "icon": "shovel",
    "display_name": "Dig",
    "category": "Building",
    "help": null
  }
]], {}]`

func TestDecode_RecognizedTypes(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  Event
	}{
		{"text", `["text", ["hello"], {}]`, Text{Content: "hello"}},
		{"text channel", `["text", ["[Public] hi"], {"from_channel": true}]`, Text{Content: "[Public] hi", IsChannel: true}},
		{"text kwargs omitted", `["text", ["x"]]`, Text{Content: "x"}},
		{"text non-string", `["text", [42], {}]`, Text{Content: "42"}},
		{"text null", `["text", [null], {}]`, Text{Content: "null"}},
		{"text bool", `["text", [true], {}]`, Text{Content: "true"}},
		{"vn_message null text", `["vn_message", [], {"text": null}]`, ActionMessage{Content: ""}},
		{"text channel truthy string", `["text", ["x"], {"from_channel": "yes"}]`, Text{Content: "x", IsChannel: true}},
		{"logged_in", `["logged_in", ["ignored"], {"x": 1}]`, LoggedIn{}},
		{"vn_message", `["vn_message", [], {"text": "She bows."}]`, ActionMessage{Content: "She bows."}},
		{"vn_message no text", `["vn_message", [], {}]`, ActionMessage{Content: ""}},
		{"reaction", `["message_reaction", [], {"emoji": "+1"}]`, Reaction{Raw: map[string]json.RawMessage{"emoji": json.RawMessage(`"+1"`)}}},
		{"command_error", `["command_error", [], {"command": "look x", "error": "No x here."}]`, CommandError{Command: "look x", Error: "No x here."}},
		{"scene end null", `["scene", [], {"action": "end", "scene": null}]`, SceneChange{Action: SceneEnd}},
		{"scene start", `["scene", [], {"action": "start", "scene": {"id": 3, "name": "Tea"}}]`, SceneChange{Action: SceneStart, Scene: &Scene{ID: 3, Name: "Tea"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decode([]byte(tc.frame))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Decode(%s)\n got %#v\nwant %#v", tc.frame, got, tc.want)
			}
		})
	}
}

func TestDecode_RoomState(t *testing.T) {
	ev, ok := Decode([]byte(roomStateFrame)).(RoomState)
	if !ok {
		t.Fatalf("expected RoomState, got %#v", Decode([]byte(roomStateFrame)))
	}
	if ev.Room.ID != 12 || ev.Room.Name != "Hall" {
		t.Fatalf("room header: %+v", ev.Room)
	}
	if ev.Room.ThumbnailURL != nil {
		t.Fatalf("empty thumbnail should decode as absent")
	}
	if len(ev.Room.Characters) != 2 || ev.Room.Characters[0].Ref != 5 || ev.Room.Characters[1].Ref != 6 {
		t.Fatalf("characters should be de-duplicated by ref: %+v", ev.Room.Characters)
	}
	if got := ev.Room.Characters[0].AvailableCommands; !reflect.DeepEqual(got, []string{"look", "page"}) {
		t.Fatalf("character commands: %v", got)
	}
	if ev.Room.Characters[1].AvailableCommands == nil {
		t.Fatalf("missing commands should decode as empty list")
	}
	if len(ev.Room.Exits) != 2 || ev.Room.Exits[0].Name != "north" || ev.Room.Exits[1].Ref != 42 {
		t.Fatalf("exits keep wire order: %+v", ev.Room.Exits)
	}
	if ev.Scene == nil || ev.Scene.ID != 9 || !ev.Scene.IsOwner {
		t.Fatalf("scene: %+v", ev.Scene)
	}
}

func TestDecode_RoomStateFromPositionalArgs(t *testing.T) {
	ev, ok := Decode([]byte(`["room_state", [{"id": "#3", "name": "Cell"}], {}]`)).(RoomState)
	if !ok {
		t.Fatalf("expected RoomState")
	}
	if ev.Room.ID != 3 || ev.Scene != nil {
		t.Fatalf("unexpected: %+v", ev)
	}
}

func TestDecode_RoomStateBadDBRefIsMalformed(t *testing.T) {
	frames := []string{
		`["room_state", [], {"room": {"id": "12", "name": "Hall"}}]`,
		`["room_state", [], {"room": {"id": "#1x", "name": "Hall"}}]`,
		`["room_state", [], {"room": {"id": "#1", "exits": [{"dbref": "north"}]}}]`,
		`["room_state", [], {"room": {"name": "no id"}}]`,
		`["room_state", [], {}]`,
	}
	for _, f := range frames {
		m, ok := Decode([]byte(f)).(Malformed)
		if !ok {
			t.Fatalf("expected Malformed for %s", f)
		}
		if m.Reason != ReasonBadRoom {
			t.Fatalf("reason=%q for %s", m.Reason, f)
		}
	}
}

func TestDecode_Commands(t *testing.T) {
	ev, ok := Decode([]byte(commandsFrame)).(CommandCatalog)
	if !ok {
		t.Fatalf("expected CommandCatalog, got %#v", Decode([]byte(commandsFrame)))
	}
	if len(ev.Commands) != 1 {
		t.Fatalf("commands: %+v", ev.Commands)
	}
	c := ev.Commands[0]
	if c.Action != "dig" || c.Icon != "shovel" || c.Category != "Building" || c.Help != "" {
		t.Fatalf("command: %+v", c)
	}
	if !c.ParamsSchema["room_name"].Required || c.ParamsSchema["back_exit"].Required {
		t.Fatalf("params: %+v", c.ParamsSchema)
	}
}

func TestDecode_CommandsStructurallyInvalid(t *testing.T) {
	frames := []string{
		`["commands", [], {}]`,
		`["commands", [{"action": "x"}], {}]`,
		`["commands", [[{"prompt_template": "x", "params_schema": {}}]], {}]`,
		`["commands", [[{"action": "x", "prompt_template": "x", "params_schema": {"a": {"required": "yes"}}}]], {}]`,
	}
	for _, f := range frames {
		m, ok := Decode([]byte(f)).(Malformed)
		if !ok || m.Reason != ReasonBadCommands {
			t.Fatalf("expected commands Malformed for %s, got %#v", f, Decode([]byte(f)))
		}
	}
}

func TestDecode_SceneEndKeepsPayloadButStillEnds(t *testing.T) {
	f := `["scene", [], {"action": "end", "scene": {"id": 4, "name": "Tea", "description": "x", "is_owner": true}}]`
	ev, ok := Decode([]byte(f)).(SceneChange)
	if !ok || ev.Action != SceneEnd {
		t.Fatalf("expected end SceneChange, got %#v", Decode([]byte(f)))
	}
	// A broken payload on end is tolerated.
	ev, ok = Decode([]byte(`["scene", [], {"action": "end", "scene": "gone"}]`)).(SceneChange)
	if !ok || ev.Scene != nil {
		t.Fatalf("expected end with nil scene, got %#v", ev)
	}
}

func TestDecode_SceneInvalid(t *testing.T) {
	frames := []string{
		`["scene", [], {"action": "pause", "scene": {"id": 1}}]`,
		`["scene", [], {"scene": {"id": 1}}]`,
		`["scene", [], {"action": "start"}]`,
		`["scene", [], {"action": "update", "scene": {"name": "no id"}}]`,
	}
	for _, f := range frames {
		if m, ok := Decode([]byte(f)).(Malformed); !ok || m.Reason != ReasonBadScene {
			t.Fatalf("expected scene Malformed for %s", f)
		}
	}
}

func TestDecode_Roulette(t *testing.T) {
	ev, ok := Decode([]byte(`["roulette_result", [1, 2], {"winner": "Ann"}]`)).(RouletteResult)
	if !ok {
		t.Fatalf("expected RouletteResult")
	}
	if len(ev.Args) != 2 || string(ev.Kwargs["winner"]) != `"Ann"` {
		t.Fatalf("unexpected: %#v", ev)
	}
}

func TestDecode_NonSequencesAreMalformed(t *testing.T) {
	frames := []string{
		``,
		`null`,
		`42`,
		`"text"`,
		`{"type": "text"}`,
		`[]`,
		`["text"]`,
		`[1, ["x"], {}]`,
		`["text", "x", {}]`,
		`["text", null, {}]`,
		`["text", ["x"], []]`,
		`["text", ["x"`,
	}
	for _, f := range frames {
		m, ok := Decode([]byte(f)).(Malformed)
		if !ok {
			t.Fatalf("expected Malformed for %q", f)
		}
		if string(m.Raw) != f {
			t.Fatalf("Malformed.Raw=%q want %q", m.Raw, f)
		}
	}
}

func TestDecode_EmptyTextFallsThroughToMalformed(t *testing.T) {
	m, ok := Decode([]byte(`["text", [], {}]`)).(Malformed)
	if !ok {
		t.Fatalf("expected Malformed")
	}
	if m.Reason != ReasonUnknownType {
		t.Fatalf("reason=%q", m.Reason)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	if _, ok := Decode([]byte(`["weather", [], {}]`)).(Malformed); !ok {
		t.Fatalf("expected Malformed for unknown type")
	}
}

func TestDecode_Deterministic(t *testing.T) {
	frames := []string{
		`["text", ["hi"], {"from_channel": false}]`,
		`["logged_in", [], {}]`,
		`["vn_message", [], {"text": "x"}]`,
		`["message_reaction", [], {"emoji": "+1", "msg": 3}]`,
		commandsFrame,
		roomStateFrame,
		`["scene", [], {"action": "update", "scene": {"id": 1}}]`,
		`["command_error", [], {"command": "x", "error": "y"}]`,
		`["roulette_result", [], {}]`,
		`["nope", [], {}]`,
	}
	for _, f := range frames {
		a := Decode([]byte(f))
		b := Decode([]byte(f))
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("non-deterministic decode for %s", f)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"say hello",
		"@dig Hall=North, South",
		`pose says "hi" <b>&</b>`,
		"unicode: héllo ☃",
		"tab\tand\nnewline",
	}
	for _, in := range inputs {
		b := Encode(in)
		ev, ok := Decode(b).(Text)
		if !ok {
			t.Fatalf("Encode(%q)=%s did not decode as Text", in, b)
		}
		if ev.Content != in || ev.IsChannel {
			t.Fatalf("round trip %q -> %#v", in, ev)
		}
	}
}

func TestEncodeShape(t *testing.T) {
	got := string(Encode("look <here>"))
	want := `["text",["look <here>"],{}]`
	if got != want {
		t.Fatalf("Encode=%s want %s", got, want)
	}
}
