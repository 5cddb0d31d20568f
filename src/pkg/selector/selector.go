package selector

import (
	"regexp"
	"strconv"
	"strings"
)

// SegmentKind tells whether a segment addresses a mapping key or a sequence item
type SegmentKind int

const (
	KindKey SegmentKind = iota
	KindIndex
)

// Segment is one step of a selector path
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

// Key returns a mapping key segment
func Key(name string) Segment {
	return Segment{Kind: KindKey, Key: name}
}

// Index returns a sequence index segment
func Index(i int) Segment {
	return Segment{Kind: KindIndex, Index: i}
}

func (s Segment) String() string {
	if s.Kind == KindIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Selector is an ordered path into a YAML document, e.g. "spec.templates[0].container"
type Selector []Segment

// indexedTokenPattern matches "name[0]", "name[0][1]" and "[0]"
var indexedTokenPattern = regexp.MustCompile(`^([^\[\]]*)((?:\[\d+\])+)$`)

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// Parse splits selector text into segments. It never fails: text that does not
// look like an indexed token is kept as a literal key.
func Parse(text string) Selector {
	var sel Selector
	for _, token := range strings.Split(text, ".") {
		sel = append(sel, parseToken(token)...)
	}
	return sel
}

func parseToken(token string) []Segment {
	match := indexedTokenPattern.FindStringSubmatch(token)
	if match == nil {
		return []Segment{Key(token)}
	}

	var segments []Segment
	if match[1] != "" {
		segments = append(segments, Key(match[1]))
	}
	for _, idx := range indexPattern.FindAllStringSubmatch(match[2], -1) {
		n, err := strconv.Atoi(idx[1])
		if err != nil {
			// index does not fit in an int, keep the token verbatim
			return []Segment{Key(token)}
		}
		segments = append(segments, Index(n))
	}
	return segments
}

// String renders the selector back into dotted/indexed form
func (s Selector) String() string {
	var sb strings.Builder
	for i, seg := range s {
		if seg.Kind == KindKey && i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.String())
	}
	return sb.String()
}
