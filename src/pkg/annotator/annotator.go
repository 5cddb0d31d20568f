package annotator

import (
	"path"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"
	"github.com/sparkstar/conftest-actions/src/pkg/annotation"
	"github.com/sparkstar/conftest-actions/src/pkg/policy"
	"github.com/sparkstar/conftest-actions/src/pkg/selector"
	"github.com/sparkstar/conftest-actions/src/pkg/yamldoc"
)

var logger = log.WithField("package", "annotator")

const DEFAULT_PREFETCH_WORKERS = 4

// Finding is one conftest warning or failure for a file
type Finding struct {
	File     string
	Severity annotation.Severity
	Message  string
	Selector string // structured selector supplied by the policy, empty if none
}

// DocumentSource loads parsed documents by file name
type DocumentSource interface {
	Load(name string) (*yamldoc.Document, error)
}

// Batch is the outcome of annotating one conftest run
type Batch struct {
	Annotations    []annotation.Annotation
	Lines          []string // rendered workflow commands, group markers included
	Unresolved     int      // annotations without a line
	DocumentErrors int      // findings whose document could not be loaded
}

// Counts tallies the batch annotations by severity
func (b *Batch) Counts() annotation.Counts {
	return annotation.CountOf(b.Annotations)
}

// Conclusion is the check conclusion for the batch
func (b *Batch) Conclusion() string {
	return annotation.Conclusion(b.Annotations)
}

type Annotator struct {
	source   DocumentSource
	renderer *annotation.Renderer
	workers  int
	prefix   string
}

func NewAnnotator(source DocumentSource, renderer *annotation.Renderer) *Annotator {
	if renderer == nil {
		renderer = annotation.NewRenderer("")
	}
	return &Annotator{
		source:   source,
		renderer: renderer,
		workers:  DEFAULT_PREFETCH_WORKERS,
	}
}

// WithWorkers sets the prefetch concurrency
func (a *Annotator) WithWorkers(n int) *Annotator {
	if n > 0 {
		a.workers = n
	}
	return a
}

// WithPathPrefix sets the directory joined onto every annotation file.
// Documents are still loaded by the file name conftest reported.
func (a *Annotator) WithPathPrefix(prefix string) *Annotator {
	a.prefix = prefix
	return a
}

// annotationPath is the file name as the annotation surface sees it
func (a *Annotator) annotationPath(file string) string {
	if a.prefix == "" || path.IsAbs(file) {
		return file
	}
	return path.Join(a.prefix, file)
}

// SelectorFor returns the selector text of a finding.
// The structured selector wins; otherwise the message text before the first colon.
// An empty result means the finding names no location.
func SelectorFor(f Finding) string {
	if s := strings.TrimSpace(f.Selector); s != "" {
		return s
	}
	prefix, _, found := strings.Cut(f.Message, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(prefix)
}

// Normalize turns a finding into an annotation, resolving its source line when possible.
// Resolution problems never drop the finding; they leave the line unresolved.
func (a *Annotator) Normalize(f Finding) annotation.Annotation {
	ann, _ := a.normalize(f)
	return ann
}

// normalize also reports whether the document failed to load
func (a *Annotator) normalize(f Finding) (annotation.Annotation, bool) {
	ann := annotation.Annotation{
		File:     a.annotationPath(f.File),
		Line:     annotation.LineUnresolved,
		Severity: f.Severity,
		Message:  f.Message,
	}

	text := SelectorFor(f)
	if text == "" {
		logger.WithField("file", f.File).Debug("Finding has no selector, leaving it unresolved")
		return ann, false
	}
	ann.Selector = text

	doc, err := a.source.Load(f.File)
	if err != nil {
		logger.WithField("file", f.File).WithField("selector", text).WithError(err).Warn("Failed to load document, leaving finding unresolved")
		return ann, true
	}

	pos, ok := doc.Resolve(selector.Parse(text))
	if !ok {
		logger.WithField("file", f.File).WithField("selector", text).Warn("Selector not found in document")
		return ann, false
	}
	ann.Line = pos.Line
	ann.Column = pos.Column
	return ann, false
}

// Findings flattens conftest results: files in order, warnings before failures
func Findings(results []policy.CheckResult) []Finding {
	var findings []Finding
	for _, r := range results {
		for _, w := range r.Warnings {
			findings = append(findings, newFinding(r.Filename, annotation.SeverityWarning, w))
		}
		for _, f := range r.Failures {
			findings = append(findings, newFinding(r.Filename, annotation.SeverityFailure, f))
		}
	}
	return findings
}

func newFinding(file string, sev annotation.Severity, r policy.Result) Finding {
	return Finding{
		File:     file,
		Severity: sev,
		Message:  r.Message,
		Selector: r.Details().Selector,
	}
}

// Prefetch loads the documents for files concurrently to warm the source cache.
// It returns the number of files that failed to load.
func (a *Annotator) Prefetch(files []string) int {
	if len(files) == 0 {
		return 0
	}
	mapper := iter.Mapper[string, bool]{MaxGoroutines: a.workers}
	loaded := mapper.Map(files, func(file *string) bool {
		_, err := a.source.Load(*file)
		return err == nil
	})
	return lo.Count(loaded, false)
}

// Run annotates every finding of the results and renders the workflow commands
func (a *Annotator) Run(results []policy.CheckResult) *Batch {
	logger.Info("Run: starting...")

	findings := Findings(results)
	a.Prefetch(uniqueFiles(findings))

	batch := &Batch{Annotations: make([]annotation.Annotation, 0, len(findings))}
	for _, f := range findings {
		ann, docErr := a.normalize(f)
		if docErr {
			batch.DocumentErrors++
		}
		if !ann.Resolved() {
			batch.Unresolved++
		}
		batch.Annotations = append(batch.Annotations, ann)
	}
	batch.Lines = a.renderer.Render(batch.Annotations)

	counts := batch.Counts()
	logger.WithField("warnings", counts.Warnings).
		WithField("failures", counts.Failures).
		WithField("unresolved", batch.Unresolved).
		WithField("document_errors", batch.DocumentErrors).
		Info("Run: done.")
	return batch
}

// uniqueFiles lists files that need a document, in first-seen order
func uniqueFiles(findings []Finding) []string {
	files := lo.FilterMap(findings, func(f Finding, _ int) (string, bool) {
		return f.File, SelectorFor(f) != ""
	})
	return lo.Uniq(files)
}
