package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CommandSpec is server-provided configuration for one player command. The
// client renders it; it never executes it.
type CommandSpec struct {
	Action         string               `json:"action"`
	PromptTemplate string               `json:"prompt_template"`
	ParamsSchema   map[string]ParamSpec `json:"params_schema"`
	Icon           string               `json:"icon,omitempty"`
	DisplayName    string               `json:"display_name,omitempty"`
	Category       string               `json:"category,omitempty"`
	Help           string               `json:"help,omitempty"`
}

type ParamSpec struct {
	Required        bool   `json:"required"`
	Widget          string `json:"widget,omitempty"`
	OptionsEndpoint string `json:"options_endpoint,omitempty"`
}

// Clone returns a copy with its own ParamsSchema map.
func (c CommandSpec) Clone() CommandSpec {
	out := c
	if c.ParamsSchema != nil {
		out.ParamsSchema = make(map[string]ParamSpec, len(c.ParamsSchema))
		for k, v := range c.ParamsSchema {
			out.ParamsSchema[k] = v
		}
	}
	return out
}

func CloneCommands(in []CommandSpec) []CommandSpec {
	if in == nil {
		return nil
	}
	out := make([]CommandSpec, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

//go:embed schemas/commands.schema.json
var commandsSchemaJSON string

//go:embed schemas/frame.schema.json
var frameSchemaJSON string

var (
	commandsSchema = jsonschema.MustCompileString("commands.schema.json", commandsSchemaJSON)
	frameSchema    = jsonschema.MustCompileString("frame.schema.json", frameSchemaJSON)
)

// ValidateFrame checks an encoded frame against the wire frame schema.
func ValidateFrame(b []byte) error {
	v, err := decodeAny(b)
	if err != nil {
		return err
	}
	return frameSchema.Validate(v)
}

// decodeCommands validates structure only; semantics are the server's.
func decodeCommands(raw json.RawMessage) ([]CommandSpec, error) {
	v, err := decodeAny(raw)
	if err != nil {
		return nil, err
	}
	if err := commandsSchema.Validate(v); err != nil {
		return nil, err
	}
	var wire []struct {
		Action         string `json:"action"`
		PromptTemplate string `json:"prompt_template"`
		ParamsSchema   map[string]struct {
			Required        bool    `json:"required"`
			Widget          string  `json:"widget"`
			OptionsEndpoint *string `json:"options_endpoint"`
		} `json:"params_schema"`
		Icon        *string `json:"icon"`
		DisplayName *string `json:"display_name"`
		Category    *string `json:"category"`
		Help        *string `json:"help"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("commands: %w", err)
	}
	out := make([]CommandSpec, 0, len(wire))
	for _, w := range wire {
		c := CommandSpec{
			Action:         w.Action,
			PromptTemplate: w.PromptTemplate,
			ParamsSchema:   make(map[string]ParamSpec, len(w.ParamsSchema)),
			Icon:           deref(w.Icon),
			DisplayName:    deref(w.DisplayName),
			Category:       deref(w.Category),
			Help:           deref(w.Help),
		}
		for name, p := range w.ParamsSchema {
			c.ParamsSchema[name] = ParamSpec{
				Required:        p.Required,
				Widget:          p.Widget,
				OptionsEndpoint: deref(p.OptionsEndpoint),
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// decodeAny produces the generic value shape jsonschema expects.
func decodeAny(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
