package annotation

import (
	"strconv"
	"strings"
)

// DefaultGroupTitle is used when the renderer has no title
const DefaultGroupTitle = "Conftest annotations"

// Workflow command escaping, as implemented by the GitHub Actions runner.
// Data escapes only what breaks the line, property values also escape
// the property separators.
var (
	dataEscaper     = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	propertyEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")
)

// Renderer formats annotations as GitHub Actions workflow commands
type Renderer struct {
	GroupTitle string
}

func NewRenderer(groupTitle string) *Renderer {
	if groupTitle == "" {
		groupTitle = DefaultGroupTitle
	}
	return &Renderer{GroupTitle: groupTitle}
}

// Render returns the group-open marker, one command per annotation in order, and the group-close marker
func (r *Renderer) Render(annotations []Annotation) []string {
	lines := make([]string, 0, len(annotations)+2)
	lines = append(lines, "::group::"+EscapeData(r.GroupTitle))
	for _, a := range annotations {
		lines = append(lines, FormatCommand(a))
	}
	lines = append(lines, "::endgroup::")
	return lines
}

// FormatCommand formats a single annotation:
//
//	::error file=<path>,line=<line>::<message>
//	::warning file=<path>,line=<line>::<message>
//
// The line property is left out when the annotation is unresolved.
func FormatCommand(a Annotation) string {
	var sb strings.Builder
	sb.WriteString("::")
	sb.WriteString(commandName(a.Severity))

	props := make([]string, 0, 2)
	if a.File != "" {
		props = append(props, "file="+EscapeProperty(a.File))
	}
	if a.Resolved() {
		props = append(props, "line="+strconv.Itoa(a.Line))
	}
	if len(props) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(props, ","))
	}

	sb.WriteString("::")
	sb.WriteString(EscapeData(a.Message))
	return sb.String()
}

func commandName(s Severity) string {
	if s == SeverityFailure {
		return "error"
	}
	return "warning"
}

// EscapeData escapes a workflow command message
func EscapeData(s string) string {
	return dataEscaper.Replace(s)
}

// EscapeProperty escapes a workflow command property value
func EscapeProperty(s string) string {
	return propertyEscaper.Replace(s)
}
