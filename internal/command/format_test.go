package command

import (
	"reflect"
	"testing"

	"arxclient.ai/internal/protocol"
)

func TestFormat_OptionalClause(t *testing.T) {
	tmpl := "@dig room_name=exit_name, back_exit"

	got := Format(tmpl, map[string]string{"room_name": "Hall", "exit_name": "North"})
	if got != "@dig Hall=North" {
		t.Fatalf("got %q", got)
	}

	got = Format(tmpl, map[string]string{"room_name": "Hall", "exit_name": "North", "back_exit": "South"})
	if got != "@dig Hall=North, South" {
		t.Fatalf("got %q", got)
	}

	got = Format(tmpl, map[string]string{"room_name": "Hall", "exit_name": "North", "back_exit": "   "})
	if got != "@dig Hall=North" {
		t.Fatalf("blank optional should be elided, got %q", got)
	}
}

func TestFormat_WholeWordOnly(t *testing.T) {
	got := Format("page target=target_msg", map[string]string{"target": "Ann"})
	if got != "page Ann=target_msg" {
		t.Fatalf("got %q", got)
	}
}

func TestFormat_NoReExpansion(t *testing.T) {
	got := Format("give item to who", map[string]string{"item": "who", "who": "Bo"})
	if got != "give who to Bo" {
		t.Fatalf("got %q", got)
	}
}

func TestFormat_MissingRequiredStaysLiteral(t *testing.T) {
	got := Format("whisper target=message", map[string]string{"message": "psst"})
	if got != "whisper target=psst" {
		t.Fatalf("got %q", got)
	}
}

func TestFormat_ValueVerbatim(t *testing.T) {
	got := Format("say text", map[string]string{"text": "  spaced out  "})
	if got != "say   spaced out  " {
		t.Fatalf("got %q", got)
	}
}

func TestFormatCommand_IgnoresFieldsOutsideSchema(t *testing.T) {
	spec := protocol.CommandSpec{
		Action:         "dig",
		PromptTemplate: "@dig room_name=exit_name, back_exit, note",
		ParamsSchema: map[string]protocol.ParamSpec{
			"room_name": {Required: true},
			"exit_name": {Required: true},
			"back_exit": {},
		},
	}
	got := FormatCommand(spec, map[string]string{
		"room_name": "Hall",
		"exit_name": "North",
		"dig":       "nope",
		"note":      "ignored",
	})
	if got != "@dig Hall=North, note" {
		t.Fatalf("got %q", got)
	}
}

func TestMissingRequired(t *testing.T) {
	spec := protocol.CommandSpec{
		ParamsSchema: map[string]protocol.ParamSpec{
			"b": {Required: true},
			"a": {Required: true},
			"c": {},
		},
	}
	got := MissingRequired(spec, map[string]string{"b": " "})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("got %v", got)
	}
	if got := MissingRequired(spec, map[string]string{"a": "1", "b": "2"}); len(got) != 0 {
		t.Fatalf("expected none missing, got %v", got)
	}
}

func TestLookupAction(t *testing.T) {
	aff := LookupAction(" Look ")
	if !aff.Known || aff.Action != ActionLook || aff.Icon != "eye" {
		t.Fatalf("look: %+v", aff)
	}
	aff = LookupAction("juggle")
	if aff.Known || aff.Icon != "terminal" || aff.Widget != WidgetForm || aff.Action != "juggle" {
		t.Fatalf("fallback: %+v", aff)
	}
	if IconFor("look", "custom") != "custom" || IconFor("look", "") != "eye" {
		t.Fatalf("IconFor precedence")
	}
}
