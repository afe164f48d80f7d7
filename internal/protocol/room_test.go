package protocol

import "testing"

func TestParseDBRef(t *testing.T) {
	ok := map[string]int64{
		"#0":          0,
		"#123":        123,
		"#2147483647": 2147483647,
		"#007":        7,
	}
	for in, want := range ok {
		got, err := ParseDBRef(in)
		if err != nil {
			t.Fatalf("ParseDBRef(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseDBRef(%q)=%d want %d", in, got, want)
		}
	}

	bad := []string{"", "#", "123", "#12a", "#-1", "#+1", "# 1", "##1", "#1_000", "#99999999999999999999"}
	for _, in := range bad {
		if _, err := ParseDBRef(in); err == nil {
			t.Fatalf("ParseDBRef(%q): expected error", in)
		}
	}
}

func TestRoomCloneIsDeep(t *testing.T) {
	thumb := "a.png"
	r := Room{
		ID:           1,
		ThumbnailURL: &thumb,
		Objects:      []RoomObject{{Ref: 2, Name: "chest", AvailableCommands: []string{"open"}}},
	}
	c := r.Clone()
	*c.ThumbnailURL = "b.png"
	c.Objects[0].AvailableCommands[0] = "smash"
	c.Objects[0].Name = "box"

	if *r.ThumbnailURL != "a.png" {
		t.Fatalf("thumbnail shared with clone")
	}
	if r.Objects[0].AvailableCommands[0] != "open" || r.Objects[0].Name != "chest" {
		t.Fatalf("objects shared with clone: %+v", r.Objects[0])
	}
}
