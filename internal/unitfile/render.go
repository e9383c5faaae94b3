// Package unitfile renders systemd unit files for the worker service.
package unitfile

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

//go:embed worker.service
var defaultTemplate string

// Placeholder tokens substituted by Render.
const (
	PlaceholderUserName = "{username}"
	PlaceholderRuntime  = "{runtime}"
	PlaceholderArtifact = "{artifact}"
	PlaceholderArgs     = "{args}"
)

var placeholders = []string{
	PlaceholderUserName,
	PlaceholderRuntime,
	PlaceholderArtifact,
	PlaceholderArgs,
}

// placeholderPattern matches lowercase brace tokens. Environment references
// such as ${HOME} are upper case and never match.
var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// Params are the values substituted into a unit template.
type Params struct {
	// UserName is the unprivileged account the worker runs as.
	UserName string
	// Runtime is the program ExecStart invokes.
	Runtime string
	// Artifact is the absolute path of the deployed worker artifact.
	Artifact string
	// Args is the already-quoted argument string (see QuoteArgs).
	Args string
}

// TemplateError reports a mismatch between a template and the known
// placeholders. It indicates a broken template, not a runtime condition.
type TemplateError struct {
	Unknown []string
	Missing []string
}

func (e *TemplateError) Error() string {
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown placeholders "+strings.Join(e.Unknown, ", "))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing placeholders "+strings.Join(e.Missing, ", "))
	}
	return "unitfile: template: " + strings.Join(parts, "; ")
}

// DefaultTemplate returns the built-in worker unit template.
func DefaultTemplate() string {
	return defaultTemplate
}

// RenderDefault renders the built-in worker unit template.
func RenderDefault(p Params) (string, error) {
	return Render(defaultTemplate, p)
}

// Render substitutes p into tmpl by literal replacement. The template must
// contain every placeholder and no other lowercase brace token. Replacement
// is a single pass, so values that look like placeholders are left as is.
// Trailing blanks left by empty values are trimmed from each line.
func Render(tmpl string, p Params) (string, error) {
	if err := checkTemplate(tmpl); err != nil {
		return "", err
	}

	r := strings.NewReplacer(
		PlaceholderUserName, p.UserName,
		PlaceholderRuntime, p.Runtime,
		PlaceholderArtifact, p.Artifact,
		PlaceholderArgs, p.Args,
	)
	return trimLineEnds(r.Replace(tmpl)), nil
}

func trimLineEnds(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func checkTemplate(tmpl string) error {
	var tplErr TemplateError
	for _, tok := range placeholderPattern.FindAllString(tmpl, -1) {
		if !slices.Contains(placeholders, tok) && !slices.Contains(tplErr.Unknown, tok) {
			tplErr.Unknown = append(tplErr.Unknown, tok)
		}
	}
	for _, ph := range placeholders {
		if !strings.Contains(tmpl, ph) {
			tplErr.Missing = append(tplErr.Missing, ph)
		}
	}
	if len(tplErr.Unknown) > 0 || len(tplErr.Missing) > 0 {
		return &tplErr
	}
	return nil
}

// QuoteArgs joins args into a string suitable for an ExecStart= line.
// Arguments containing whitespace, quotes or backslashes are double-quoted
// with C-style escapes, and systemd specifier and variable characters
// (% and $) are doubled so they reach the worker literally.
func QuoteArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, quoteArg(a))
	}
	return strings.Join(quoted, " ")
}

func quoteArg(a string) string {
	a = strings.NewReplacer("%", "%%", "$", "$$").Replace(a)
	if a != "" && !strings.ContainsAny(a, " \t\n\"'\\;") {
		return a
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range a {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ServiceFileName returns the unit file name for a service.
func ServiceFileName(service string) string {
	return fmt.Sprintf("%s.service", service)
}
