package compiler

import (
	"sort"
	"unicode/utf8"
)

// LineIndex converts byte offsets into line and column numbers.
type LineIndex struct {
	src    string
	starts []int // offset of the first byte of each line
}

// NewLineIndex indexes the line starts of src.
func NewLineIndex(src string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{src: src, starts: starts}
}

// Line returns the 1-based line containing offset.
func (li *LineIndex) Line(offset int) int {
	return sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset })
}

// Position returns the 1-based line and the 1-based column, counted in
// characters, of offset.
func (li *LineIndex) Position(offset int) (line, col int) {
	if offset > len(li.src) {
		offset = len(li.src)
	}
	if offset < 0 {
		offset = 0
	}
	line = li.Line(offset)
	start := li.starts[line-1]
	return line, utf8.RuneCountInString(li.src[start:offset]) + 1
}

// LineCount returns the number of lines.
func (li *LineIndex) LineCount() int {
	return len(li.starts)
}
