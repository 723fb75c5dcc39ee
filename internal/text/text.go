// Package text implements line/column arithmetic over UTF-8 strings.
//
// Offsets and columns are byte counts. A line break is "\n", "\r\n" or a
// lone "\r"; a "\r\n" pair is a single break.
package text

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned for offsets or positions outside the text.
	ErrOutOfBounds = errors.New("text: position out of bounds")

	// ErrInvertedRange is returned for a range whose start is after its end.
	ErrInvertedRange = errors.New("text: range start after end")

	// ErrJoinsLineBreak is returned for a replacement that would turn a lone
	// "\r" and a "\n" on either side of an edit boundary into one break.
	ErrJoinsLineBreak = errors.New("text: edit joins CR and LF into one line break")
)

// Position is a zero-based line and byte column.
type Position struct {
	Line      int
	Character int
}

// Compare returns -1, 0 or +1 in line-major order.
func (p Position) Compare(o Position) int {
	switch {
	case p.Line < o.Line:
		return -1
	case p.Line > o.Line:
		return 1
	case p.Character < o.Character:
		return -1
	case p.Character > o.Character:
		return 1
	default:
		return 0
	}
}

// Before reports whether p is strictly before o.
func (p Position) Before(o Position) bool { return p.Compare(o) < 0 }

// After reports whether p is strictly after o.
func (p Position) After(o Position) bool { return p.Compare(o) > 0 }

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is the span [Start, End) between two positions.
type Range struct {
	Start Position
	End   Position
}

// NewRange builds a range from line/column pairs.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// IsEmpty reports whether the range covers no text.
func (r Range) IsEmpty() bool { return r.Start == r.End }

// IsSingleLine reports whether start and end are on the same line.
func (r Range) IsSingleLine() bool { return r.Start.Line == r.End.Line }

// Contains reports whether o lies within r, boundaries included.
func (r Range) Contains(o Range) bool {
	return r.Start.Compare(o.Start) <= 0 && o.End.Compare(r.End) <= 0
}

func (r Range) String() string {
	return fmt.Sprintf("[%s-%s]", r.Start, r.End)
}

// breakAt returns the width of the line break starting at s[i], or 0.
func breakAt(s string, i int) int {
	switch s[i] {
	case '\n':
		return 1
	case '\r':
		if i+1 < len(s) && s[i+1] == '\n' {
			return 2
		}
		return 1
	}
	return 0
}

// Extent returns the position just after the last byte of s when s is laid
// out from (0, 0).
func Extent(s string) Position {
	var p Position
	lineStart := 0
	for i := 0; i < len(s); {
		if w := breakAt(s, i); w > 0 {
			p.Line++
			i += w
			lineStart = i
			continue
		}
		i++
	}
	p.Character = len(s) - lineStart
	return p
}

// LineCount returns the number of lines in s. The empty string has one line.
func LineCount(s string) int { return Extent(s).Line + 1 }

// LastLineLength returns the byte length of the last line of s.
func LastLineLength(s string) int { return Extent(s).Character }

// Advance returns where inserted ends when written at start.
func Advance(start Position, inserted string) Position {
	e := Extent(inserted)
	if e.Line == 0 {
		return Position{Line: start.Line, Character: start.Character + e.Character}
	}
	return Position{Line: start.Line + e.Line, Character: e.Character}
}

// FullRange returns the range covering all of s.
func FullRange(s string) Range {
	return Range{End: Extent(s)}
}

// PositionAt converts a byte offset to a position. An offset that falls
// between "\r" and "\n" maps to the end of that line.
func PositionAt(s string, offset int) (Position, error) {
	if offset < 0 || offset > len(s) {
		return Position{}, fmt.Errorf("%w: offset %d, length %d", ErrOutOfBounds, offset, len(s))
	}
	var p Position
	lineStart := 0
	for i := 0; i < offset; {
		w := breakAt(s, i)
		if w == 0 {
			i++
			continue
		}
		if i+w > offset {
			p.Character = i - lineStart
			return p, nil
		}
		p.Line++
		i += w
		lineStart = i
	}
	p.Character = offset - lineStart
	return p, nil
}

// lineBounds returns the byte offset where line starts and where its content
// ends (before the break).
func lineBounds(s string, line int) (start, end int, ok bool) {
	if line < 0 {
		return 0, 0, false
	}
	cur := 0
	i := 0
	for cur < line {
		if i >= len(s) {
			return 0, 0, false
		}
		if w := breakAt(s, i); w > 0 {
			cur++
			i += w
			continue
		}
		i++
	}
	start = i
	for i < len(s) && breakAt(s, i) == 0 {
		i++
	}
	return start, i, true
}

// OffsetAt converts a position to a byte offset.
func OffsetAt(s string, p Position) (int, error) {
	start, end, ok := lineBounds(s, p.Line)
	if !ok || p.Character < 0 || start+p.Character > end {
		return 0, fmt.Errorf("%w: position %s", ErrOutOfBounds, p)
	}
	return start + p.Character, nil
}

// Offsets converts both ends of r to byte offsets.
func Offsets(s string, r Range) (int, int, error) {
	if r.Start.After(r.End) {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvertedRange, r)
	}
	a, err := OffsetAt(s, r.Start)
	if err != nil {
		return 0, 0, err
	}
	b, err := OffsetAt(s, r.End)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// RangeOf converts a pair of byte offsets to a range.
func RangeOf(s string, start, end int) (Range, error) {
	if start > end {
		return Range{}, fmt.Errorf("%w: offsets %d-%d", ErrInvertedRange, start, end)
	}
	a, err := PositionAt(s, start)
	if err != nil {
		return Range{}, err
	}
	b, err := PositionAt(s, end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: a, End: b}, nil
}

// Validate checks that r is ordered and lies within s.
func Validate(s string, r Range) error {
	_, _, err := Offsets(s, r)
	return err
}

// Slice returns the text covered by r.
func Slice(s string, r Range) (string, error) {
	a, b, err := Offsets(s, r)
	if err != nil {
		return "", err
	}
	return s[a:b], nil
}

// Replace returns s with the text covered by r replaced by repl. A position
// never falls inside a "\r\n" pair, so the only way an edit can change how
// the surrounding breaks are counted is by creating a new pair at one of its
// boundaries; such edits fail with ErrJoinsLineBreak.
func Replace(s string, r Range, repl string) (string, error) {
	a, b, err := Offsets(s, r)
	if err != nil {
		return "", err
	}
	out := s[:a] + repl + s[b:]
	for _, i := range [2]int{a, a + len(repl)} {
		if i > 0 && i < len(out) && out[i-1] == '\r' && out[i] == '\n' {
			return "", fmt.Errorf("%w: at %s", ErrJoinsLineBreak, r)
		}
	}
	return out, nil
}

// Clamp moves p to the nearest position inside s.
func Clamp(s string, p Position) Position {
	if p.Line < 0 {
		return Position{}
	}
	ext := Extent(s)
	if p.Line > ext.Line {
		return ext
	}
	start, end, _ := lineBounds(s, p.Line)
	switch {
	case p.Character < 0:
		p.Character = 0
	case p.Character > end-start:
		p.Character = end - start
	}
	return p
}
