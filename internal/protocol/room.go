package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Room struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	ThumbnailURL *string      `json:"thumbnail_url,omitempty"`
	Characters   []RoomObject `json:"characters"`
	Objects      []RoomObject `json:"objects"`
	Exits        []RoomObject `json:"exits"`
}

type RoomObject struct {
	Ref               int64    `json:"ref"`
	Name              string   `json:"name"`
	ThumbnailURL      *string  `json:"thumbnail_url,omitempty"`
	AvailableCommands []string `json:"available_commands"`
}

type Scene struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsOwner     bool   `json:"is_owner"`
}

// Clone returns a copy that shares no slices or pointers with r.
func (r Room) Clone() Room {
	out := r
	out.ThumbnailURL = cloneStr(r.ThumbnailURL)
	out.Characters = cloneObjects(r.Characters)
	out.Objects = cloneObjects(r.Objects)
	out.Exits = cloneObjects(r.Exits)
	return out
}

func cloneObjects(in []RoomObject) []RoomObject {
	if in == nil {
		return nil
	}
	out := make([]RoomObject, len(in))
	for i, o := range in {
		out[i] = o
		out[i].ThumbnailURL = cloneStr(o.ThumbnailURL)
		out[i].AvailableCommands = append([]string(nil), o.AvailableCommands...)
	}
	return out
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}

// ParseDBRef parses a "#123" object reference. The leading '#' is required and
// the remainder must be decimal digits that fit an int64.
func ParseDBRef(s string) (int64, error) {
	rest, ok := strings.CutPrefix(s, "#")
	if !ok {
		return 0, fmt.Errorf("dbref %q: missing '#'", s)
	}
	if rest == "" {
		return 0, fmt.Errorf("dbref %q: no digits", s)
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return 0, fmt.Errorf("dbref %q: non-digit", s)
		}
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dbref %q: %w", s, err)
	}
	return n, nil
}

// room_state wire shapes.
type roomWire struct {
	ID           *string      `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	ThumbnailURL *string      `json:"thumbnail_url"`
	Characters   []objectWire `json:"characters"`
	Objects      []objectWire `json:"objects"`
	Exits        []objectWire `json:"exits"`
}

type objectWire struct {
	DBRef        *string  `json:"dbref"`
	Name         string   `json:"name"`
	ThumbnailURL *string  `json:"thumbnail_url"`
	Commands     []string `json:"commands"`
}

type sceneWire struct {
	ID          *int64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsOwner     bool   `json:"is_owner"`
}

func decodeRoom(raw json.RawMessage) (Room, error) {
	var w roomWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Room{}, err
	}
	if w.ID == nil {
		return Room{}, fmt.Errorf("room without id")
	}
	id, err := ParseDBRef(*w.ID)
	if err != nil {
		return Room{}, err
	}
	r := Room{
		ID:           id,
		Name:         w.Name,
		Description:  w.Description,
		ThumbnailURL: nonEmpty(w.ThumbnailURL),
	}
	if r.Characters, err = decodeObjects(w.Characters, true); err != nil {
		return Room{}, fmt.Errorf("characters: %w", err)
	}
	if r.Objects, err = decodeObjects(w.Objects, false); err != nil {
		return Room{}, fmt.Errorf("objects: %w", err)
	}
	if r.Exits, err = decodeObjects(w.Exits, false); err != nil {
		return Room{}, fmt.Errorf("exits: %w", err)
	}
	return r, nil
}

// decodeObjects keeps wire order. With dedupe set, later duplicates of a ref
// are dropped (characters form a set).
func decodeObjects(in []objectWire, dedupe bool) ([]RoomObject, error) {
	out := make([]RoomObject, 0, len(in))
	seen := map[int64]struct{}{}
	for _, w := range in {
		if w.DBRef == nil {
			return nil, fmt.Errorf("object %q without dbref", w.Name)
		}
		ref, err := ParseDBRef(*w.DBRef)
		if err != nil {
			return nil, err
		}
		if dedupe {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
		}
		cmds := w.Commands
		if cmds == nil {
			cmds = []string{}
		}
		out = append(out, RoomObject{
			Ref:               ref,
			Name:              w.Name,
			ThumbnailURL:      nonEmpty(w.ThumbnailURL),
			AvailableCommands: cmds,
		})
	}
	return out, nil
}

// decodeScene returns nil for a JSON null or missing scene.
func decodeScene(raw json.RawMessage) (*Scene, error) {
	if isNull(raw) {
		return nil, nil
	}
	var w sceneWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.ID == nil || *w.ID < 0 {
		return nil, fmt.Errorf("scene without id")
	}
	return &Scene{ID: *w.ID, Name: w.Name, Description: w.Description, IsOwner: w.IsOwner}, nil
}

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return cloneStr(p)
}
