package yamldoc

import (
	"sort"
	"unicode/utf8"
)

// LineIndex maps byte offsets of a source text to 1-based line numbers.
// It stores the offset at which every line starts, so lookups are a binary search.
// Line breaks are "\n", "\r\n" and a lone "\r", as the YAML parser counts them.
type LineIndex struct {
	src    []byte
	starts []int
}

func NewLineIndex(src []byte) *LineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' || (b == '\r' && (i+1 == len(src) || src[i+1] != '\n')) {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{src: src, starts: starts}
}

// Line returns the 1-based line containing offset.
// For "\n" and "\r\n" sources it equals the number of '\n' bytes before offset, plus one.
func (li *LineIndex) Line(offset int) int {
	return sort.Search(len(li.starts), func(i int) bool {
		return li.starts[i] > offset
	})
}

// LineCount returns the number of lines in the source
func (li *LineIndex) LineCount() int {
	return len(li.starts)
}

// Offset converts a 1-based line and 1-based column (counted in characters,
// as the YAML parser reports them) into a byte offset.
// Returns false when the position lies outside the source.
func (li *LineIndex) Offset(line, column int) (int, bool) {
	if line < 1 || line > len(li.starts) || column < 1 {
		return 0, false
	}
	offset := li.starts[line-1]
	for col := 1; col < column; col++ {
		if offset >= len(li.src) || li.src[offset] == '\n' || li.src[offset] == '\r' {
			return 0, false
		}
		_, size := utf8.DecodeRune(li.src[offset:])
		offset += size
	}
	return offset, true
}
