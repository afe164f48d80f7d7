package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"arxclient.ai/internal/persistence/framelog"
)

func TestReplayFile(t *testing.T) {
	dir := t.TempDir()
	w := framelog.NewWriter(dir, "frames")
	frames := []struct {
		character string
		dir       framelog.Direction
		frame     string
	}{
		{"7", framelog.Inbound, `["logged_in", [], {}]`},
		{"7", framelog.Outbound, `["text",["look"],{}]`},
		{"7", framelog.Inbound, `["room_state", [], {"room": {"id": "#12", "name": "Hall"}}]`},
		{"9", framelog.Inbound, `["text", ["elsewhere"], {}]`},
		{"7", framelog.Inbound, `oops`},
	}
	for _, f := range frames {
		if err := w.Record(f.character, f.dir, []byte(f.frame)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "frames-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("archives: %v", files)
	}

	var out bytes.Buffer
	if err := replayFile(&out, files[0], "7"); err != nil {
		t.Fatalf("replay: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"7 [system] You are now logged in.",
		"7 [error] unrecognized message",
		"7: room=Hall scene=- commands=0 lines=2",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "elsewhere") {
		t.Fatalf("other character leaked into replay:\n%s", got)
	}
}
