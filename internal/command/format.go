// Package command renders server-provided command templates into the literal
// text sent over the wire.
package command

import (
	"regexp"
	"sort"
	"strings"

	"arxclient.ai/internal/protocol"
)

var (
	optionalClause = regexp.MustCompile(`, ([A-Za-z_][A-Za-z0-9_]*)\b`)
	wordToken      = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)
)

// Format renders template with fields. Every ", name" clause is optional and
// dropped when fields[name] is blank; remaining whole-word names with
// non-blank values are substituted. Names never supplied stay literal.
func Format(template string, fields map[string]string) string {
	return render(template, fields, func(string) bool { return true })
}

// FormatCommand is Format restricted to the parameters declared in the
// command's schema. Fields without a schema entry are ignored.
func FormatCommand(spec protocol.CommandSpec, fields map[string]string) string {
	return render(spec.PromptTemplate, fields, func(name string) bool {
		_, ok := spec.ParamsSchema[name]
		return ok
	})
}

// MissingRequired lists required parameters that are absent or blank, sorted.
func MissingRequired(spec protocol.CommandSpec, fields map[string]string) []string {
	var out []string
	for name, p := range spec.ParamsSchema {
		if p.Required && isBlank(fields[name]) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func render(template string, fields map[string]string, isParam func(string) bool) string {
	out := optionalClause.ReplaceAllStringFunc(template, func(clause string) string {
		name := clause[2:]
		if !isParam(name) {
			return clause
		}
		if isBlank(fields[name]) {
			return ""
		}
		return clause
	})

	// One pass over tokens so substituted values are never expanded again.
	return wordToken.ReplaceAllStringFunc(out, func(tok string) string {
		if !isParam(tok) {
			return tok
		}
		v, ok := fields[tok]
		if !ok || isBlank(v) {
			return tok
		}
		return v
	})
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
