package template

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	log "github.com/sirupsen/logrus"
	"github.com/sparkstar/conftest-actions/src/pkg/models"
)

var logger = log.WithField("package", "template")

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Renderer renders markdown reports from templates.
// A template found in TemplatesPath overrides the embedded default of the same name.
type Renderer struct {
	TemplatesPath string
}

func NewRenderer(templatesPath string) *Renderer {
	return &Renderer{TemplatesPath: templatesPath}
}

// Signature returns the hidden comment marker for a check name
func Signature(checkName string) string {
	return strings.ReplaceAll(ToolCommentSignature, ToolCommentCheckToken, checkName)
}

// RenderSummary renders the summary markdown for a report
func (r *Renderer) RenderSummary(data models.ReportTemplateData) (string, error) {
	return r.render(FileNameSummaryTemplate, data)
}

func (r *Renderer) render(name string, data any) (string, error) {
	content, err := r.load(name)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(name).Funcs(funcMap()).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) load(name string) (string, error) {
	if r.TemplatesPath != "" {
		path := filepath.Join(r.TemplatesPath, name)
		content, err := os.ReadFile(path)
		if err == nil {
			logger.WithField("template", path).Debug("Using custom template")
			return string(content), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read template %s: %w", path, err)
		}
		logger.WithField("template", path).Debug("Custom template not found, using default")
	}

	content, err := defaultTemplates.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("unknown template %s: %w", name, err)
	}
	return string(content), nil
}

// Plural appends an "s" to word unless n is 1
func Plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["plural"] = Plural
	// mdcell keeps a value inside a single markdown table cell
	fm["mdcell"] = func(s string) string {
		s = strings.ReplaceAll(s, "|", "\\|")
		s = strings.ReplaceAll(s, "\r\n", "<br>")
		return strings.ReplaceAll(s, "\n", "<br>")
	}
	return fm
}
