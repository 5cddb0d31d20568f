package annotation

// Severity of a finding, as reported by conftest
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityFailure Severity = "failure"
)

// LineUnresolved marks an annotation whose selector could not be located in the source
const LineUnresolved = 0

// Annotation binds a finding to a source location
type Annotation struct {
	File     string   `json:"file"`
	Line     int      `json:"line,omitempty"`   // 1-based, LineUnresolved when unknown
	Column   int      `json:"column,omitempty"` // 1-based, 0 when unknown
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Selector string   `json:"selector,omitempty"` // selector used for the lookup, empty if none was found
}

// Resolved reports whether the annotation carries a source line
func (a Annotation) Resolved() bool {
	return a.Line != LineUnresolved
}

// Counts tallies annotations by severity
type Counts struct {
	Warnings   int `json:"warnings"`
	Failures   int `json:"failures"`
	Unresolved int `json:"unresolved"`
}

func CountOf(annotations []Annotation) Counts {
	var c Counts
	for _, a := range annotations {
		switch a.Severity {
		case SeverityWarning:
			c.Warnings++
		case SeverityFailure:
			c.Failures++
		}
		if !a.Resolved() {
			c.Unresolved++
		}
	}
	return c
}

// Total is the number of counted annotations
func (c Counts) Total() int {
	return c.Warnings + c.Failures
}

const (
	ConclusionSuccess = "success"
	ConclusionFailure = "failure"
)

// Conclusion is "failure" when any failure-severity annotation exists, "success" otherwise
func Conclusion(annotations []Annotation) string {
	if CountOf(annotations).Failures > 0 {
		return ConclusionFailure
	}
	return ConclusionSuccess
}
