package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder replaces every parameter in a parsed step text.
const Placeholder = "{}"

var paramPattern = regexp.MustCompile(`<([^<>]*)>`)

// ParseStepText turns a declared step text into its parsed form.
// Example: "Say <greeting> to <name>" → ("Say {} to {}", [greeting name]).
func ParseStepText(text string) (string, []string) {
	var params []string
	for _, m := range paramPattern.FindAllStringSubmatch(text, -1) {
		params = append(params, m[1])
	}
	parsed := paramPattern.ReplaceAllString(strings.TrimSpace(text), Placeholder)
	return parsed, params
}

// ParseActualStep splits a step as written in a spec into its parsed form and
// its quoted arguments.
// Example: `Say "hello" to "bob"` → ("Say {} to {}", [hello bob]).
func ParseActualStep(text string) (string, []string, error) {
	var (
		b       strings.Builder
		args    []string
		current strings.Builder
		inQuote bool
		escaped bool
	)
	for _, r := range strings.TrimSpace(text) {
		switch {
		case inQuote && escaped:
			current.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case inQuote && r == '"':
			args = append(args, current.String())
			current.Reset()
			inQuote = false
			b.WriteString(Placeholder)
		case inQuote:
			current.WriteRune(r)
		case r == '"':
			inQuote = true
		default:
			b.WriteRune(r)
		}
	}
	if inQuote {
		return "", nil, fmt.Errorf("unterminated quote in step %q", text)
	}
	return b.String(), args, nil
}
