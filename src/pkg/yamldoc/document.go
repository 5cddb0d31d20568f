package yamldoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/sparkstar/conftest-actions/src/pkg/selector"
	"gopkg.in/yaml.v3"
)

var logger = log.WithField("package", "yamldoc")

var (
	// ErrParse indicates the source is not valid YAML
	ErrParse = errors.New("invalid YAML document")
)

// maxAliasDepth bounds alias chains while walking
const maxAliasDepth = 32

// Position is the start of a node in the source text
type Position struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based, in characters
}

// Document is a parsed YAML stream that keeps the source positions of every node.
// A stream may hold several documents separated by "---".
type Document struct {
	Path string

	source []byte
	lines  *LineIndex
	roots  []*yaml.Node
}

// Parse parses every document of a YAML stream
func Parse(path string, src []byte) (*Document, error) {
	doc := &Document{
		Path:   path,
		source: src,
		lines:  NewLineIndex(src),
	}

	dec := yaml.NewDecoder(bytes.NewReader(src))
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrParse, path, err)
		}
		doc.roots = append(doc.roots, &node)
	}

	logger.WithField("path", path).WithField("documents", len(doc.roots)).Debug("Parsed YAML")
	return doc, nil
}

// Source returns the raw text the document was parsed from
func (d *Document) Source() []byte {
	return d.source
}

// Len returns the number of documents in the stream
func (d *Document) Len() int {
	return len(d.roots)
}

// Resolve walks the selector from the root of each document in the stream and
// returns the position of the addressed node. For a trailing key the position
// is that of the key itself, for a trailing index the position of the item.
// The first document that resolves wins; false means not found.
func (d *Document) Resolve(sel selector.Selector) (Position, bool) {
	for _, root := range d.roots {
		node := lookup(root, sel)
		if node == nil {
			continue
		}
		if pos, ok := d.position(node); ok {
			return pos, true
		}
	}

	logger.WithField("path", d.Path).WithField("selector", sel.String()).Debug("Selector not found")
	return Position{}, false
}

// ResolveLine is Resolve reduced to the 1-based line number
func (d *Document) ResolveLine(sel selector.Selector) (int, bool) {
	pos, ok := d.Resolve(sel)
	return pos.Line, ok
}

func (d *Document) position(node *yaml.Node) (Position, bool) {
	if node.Line == 0 {
		return Position{}, false
	}
	offset, ok := d.lines.Offset(node.Line, node.Column)
	if !ok {
		return Position{}, false
	}
	return Position{
		Offset: offset,
		Line:   d.lines.Line(offset),
		Column: node.Column,
	}, true
}

// lookup returns the node naming the last segment, or nil
func lookup(root *yaml.Node, sel selector.Selector) *yaml.Node {
	current := unwrap(root)
	located := current

	for _, seg := range sel {
		current = unwrap(current)
		if current == nil {
			return nil
		}

		switch seg.Kind {
		case selector.KindKey:
			if current.Kind != yaml.MappingNode {
				return nil
			}
			key, value := findKey(current, seg.Key, 0)
			if key == nil {
				return nil
			}
			located, current = key, value
		case selector.KindIndex:
			if current.Kind != yaml.SequenceNode || seg.Index < 0 || seg.Index >= len(current.Content) {
				return nil
			}
			current = current.Content[seg.Index]
			located = current
		default:
			return nil
		}
	}

	return located
}

// unwrap skips document wrappers and follows aliases
func unwrap(node *yaml.Node) *yaml.Node {
	for depth := 0; node != nil && depth < maxAliasDepth; depth++ {
		switch node.Kind {
		case yaml.DocumentNode:
			if len(node.Content) == 0 {
				return nil
			}
			node = node.Content[0]
		case yaml.AliasNode:
			node = node.Alias
		default:
			return node
		}
	}
	return nil
}

// findKey returns the key and value nodes for name in a mapping.
// Keys pulled in through "<<" merges are searched after the mapping's own keys.
func findKey(mapping *yaml.Node, name string, depth int) (*yaml.Node, *yaml.Node) {
	var merges []*yaml.Node
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if key.Kind == yaml.ScalarNode && (key.Tag == "!!merge" || (key.Value == "<<" && key.Style == 0)) {
			merges = append(merges, value)
			continue
		}
		if key.Kind == yaml.ScalarNode && key.Value == name {
			return key, value
		}
	}

	if depth >= maxAliasDepth {
		return nil, nil
	}
	for _, merge := range merges {
		merge = unwrap(merge)
		if merge == nil {
			continue
		}
		candidates := []*yaml.Node{merge}
		if merge.Kind == yaml.SequenceNode {
			candidates = merge.Content
		}
		for _, candidate := range candidates {
			candidate = unwrap(candidate)
			if candidate == nil || candidate.Kind != yaml.MappingNode {
				continue
			}
			if key, value := findKey(candidate, name, depth+1); key != nil {
				return key, value
			}
		}
	}
	return nil, nil
}
