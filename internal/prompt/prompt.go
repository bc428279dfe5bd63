// Package prompt turns a domain template and request variables into the
// system/user message pair sent to the LLM.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/agri-assist/backend/internal/index"
)

// Reserved variables filled in by Assemble.
const (
	VarContext            = "context"
	VarFormatInstructions = "format_instructions"
)

// NoContext is rendered in place of retrieved documents when there are none.
const NoContext = "No reference documents available."

// Template holds Go text/template sources for both messages.
// Variables are referenced as {{.name}}.
type Template struct {
	System string
	User   string
}

// Pair is the assembled prompt.
type Pair struct {
	System string
	User   string
}

var varPattern = regexp.MustCompile(`{{\s*\.([A-Za-z_][A-Za-z0-9_]*)\s*}}`)

// Assemble renders t with vars. chunks become the context variable and
// format the format_instructions variable. Every variable the template
// references must be supplied. Assemble is pure.
func Assemble(t Template, vars map[string]any, chunks []index.Chunk, format string) (Pair, error) {
	values := make(map[string]any, len(vars)+2)
	for k, v := range vars {
		values[k] = v
	}
	values[VarContext] = FormatContext(chunks)
	values[VarFormatInstructions] = format

	system, err := render(t.System, values)
	if err != nil {
		return Pair{}, fmt.Errorf("system prompt: %w", err)
	}
	user, err := render(t.User, values)
	if err != nil {
		return Pair{}, fmt.Errorf("user prompt: %w", err)
	}
	return Pair{System: system, User: user}, nil
}

func render(tmpl string, values map[string]any) (string, error) {
	names := Variables(tmpl)
	var missing []string
	for _, name := range names {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	if len(names) == 0 {
		return tmpl, nil
	}

	used := make(map[string]any, len(names))
	for _, name := range names {
		used[name] = values[name]
	}
	out, err := prompts.NewPromptTemplate(tmpl, names).Format(used)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Variables lists the distinct variables referenced by tmpl, sorted.
func Variables(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range varPattern.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// FormatContext joins retrieved chunks in rank order.
func FormatContext(chunks []index.Chunk) string {
	if len(chunks) == 0 {
		return NoContext
	}
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] (source: %s)\n%s", c.Rank, c.Source, strings.TrimSpace(c.Text))
	}
	return sb.String()
}
