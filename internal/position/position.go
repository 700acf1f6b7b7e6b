// Package position maps analyzer (line, column) positions to byte offset
// ranges in a document.
//
// Analyzer columns are tab-expanded: a tab advances the column to the next
// multiple of the tab width. Lines and columns are 1-based.
package position

import (
	"unicode/utf8"

	"github.com/ludo-technologies/jsinspect/domain"
)

// DefaultTabWidth is used when a non-positive tab width is given
const DefaultTabWidth = 8

// LineIndex holds the byte offset at which each line of a text starts
type LineIndex struct {
	text   string
	starts []int
}

// NewLineIndex scans text for line boundaries
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// LineCount returns the number of lines, including a trailing empty line
func (li *LineIndex) LineCount() int {
	return len(li.starts)
}

// LineStart returns the offset of the first byte of a 1-based line
func (li *LineIndex) LineStart(line int) (int, bool) {
	if line < 1 || line > len(li.starts) {
		return 0, false
	}
	return li.starts[line-1], true
}

// lineEnd returns the offset of the newline terminating line, or the text length
func (li *LineIndex) lineEnd(line int) int {
	if line < len(li.starts) {
		return li.starts[line] - 1
	}
	return len(li.text)
}

// LineText returns the content of a line without its newline
func (li *LineIndex) LineText(line int) string {
	start, ok := li.LineStart(line)
	if !ok {
		return ""
	}
	return li.text[start:li.lineEnd(line)]
}

// scan walks line from its start until the logical column reaches col and
// returns the offset reached. The walk stops at the end of the line.
func (li *LineIndex) scan(line, col, tabWidth int) int {
	offset := li.starts[line-1]
	end := li.lineEnd(line)
	logical := 0
	for logical < col && offset < end {
		r, size := utf8.DecodeRuneInString(li.text[offset:end])
		if r == '\t' {
			logical = (logical/tabWidth + 1) * tabWidth
		} else {
			logical++
		}
		offset += size
	}
	return offset
}

// Resolve maps an analyzer range to a document range.
//
// The begin column is inclusive and the end column names the last character,
// so the result covers [offset(begin)-1, offset(end)). Reversed endpoints are
// swapped. Lines outside the document yield the unknown range (0,0).
func (li *LineIndex) Resolve(beginLine, beginCol, endLine, endCol, tabWidth int) domain.DocumentRange {
	if tabWidth <= 0 {
		tabWidth = DefaultTabWidth
	}
	if _, ok := li.LineStart(beginLine); !ok {
		return domain.DocumentRange{}
	}
	if _, ok := li.LineStart(endLine); !ok {
		return domain.DocumentRange{}
	}

	start, startLine := li.scan(beginLine, beginCol, tabWidth), beginLine
	end := li.scan(endLine, endCol, tabWidth)
	if start > end {
		start, end = end, start
		startLine = endLine
	}
	if start > li.starts[startLine-1] {
		_, size := utf8.DecodeLastRuneInString(li.text[li.starts[startLine-1]:start])
		start -= size
	}
	return li.clamp(start, end)
}

// ResolveLines maps a line span to a range covering the whole lines, used by
// line-level rules.
func (li *LineIndex) ResolveLines(beginLine, endLine int) domain.DocumentRange {
	start, ok := li.LineStart(beginLine)
	if !ok {
		return domain.DocumentRange{}
	}
	if _, ok := li.LineStart(endLine); !ok {
		return domain.DocumentRange{}
	}
	if endLine < beginLine {
		endLine = beginLine
	}
	return li.clamp(start, li.lineEnd(endLine))
}

// ExpandedColumn converts a byte column within a line to a 0-based
// tab-expanded column.
func (li *LineIndex) ExpandedColumn(line, byteCol, tabWidth int) int {
	return ExpandColumn(li.LineText(line), byteCol, tabWidth)
}

func (li *LineIndex) clamp(start, end int) domain.DocumentRange {
	n := len(li.text)
	start = min(max(start, 0), n)
	end = min(max(end, start), n)
	return domain.DocumentRange{Start: start, End: end}
}

// Resolve is a convenience wrapper that indexes text and resolves one range
func Resolve(text string, beginLine, beginCol, endLine, endCol, tabWidth int) domain.DocumentRange {
	return NewLineIndex(text).Resolve(beginLine, beginCol, endLine, endCol, tabWidth)
}

// ResolveLines is a convenience wrapper for whole-line ranges
func ResolveLines(text string, beginLine, endLine int) domain.DocumentRange {
	return NewLineIndex(text).ResolveLines(beginLine, endLine)
}

// ExpandColumn returns the 0-based tab-expanded column reached after the
// first byteCol bytes of lineText.
func ExpandColumn(lineText string, byteCol, tabWidth int) int {
	if tabWidth <= 0 {
		tabWidth = DefaultTabWidth
	}
	byteCol = min(max(byteCol, 0), len(lineText))
	logical := 0
	for offset := 0; offset < byteCol; {
		r, size := utf8.DecodeRuneInString(lineText[offset:])
		if r == '\t' {
			logical = (logical/tabWidth + 1) * tabWidth
		} else {
			logical++
		}
		offset += size
	}
	return logical
}
