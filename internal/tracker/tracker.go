// Package tracker keeps a region's range current while its host document is
// edited.
//
// Every host edit is classified against the tracked range:
//
//   - Below: the edit starts after the range end; nothing moves.
//   - Above: the edit ends before the range start; both ends shift.
//   - Inside: the edit lies within the range (boundaries included); the
//     start stays and the end shifts.
//
// Any other edit straddles a boundary and is untrackable without re-parsing
// the document, so Apply reports ErrUntrackable.
//
// Deltas count the breaks in the inserted text alone. That holds because
// hosts reject edits that join a lone "\r" and a "\n" across an edit
// boundary (see text.ErrJoinsLineBreak).
package tracker

import (
	"errors"
	"fmt"

	"github.com/jward/subdoc/internal/text"
)

// ErrUntrackable is returned for an edit that overlaps a boundary of the
// tracked range.
var ErrUntrackable = errors.New("tracker: edit overlaps tracked range boundary")

// Relation is the position of an edit relative to the tracked range.
type Relation uint8

const (
	Below Relation = iota
	Above
	Inside
)

func (r Relation) String() string {
	switch r {
	case Below:
		return "below"
	case Above:
		return "above"
	case Inside:
		return "inside"
	default:
		return "unknown"
	}
}

// Edit describes one replacement in pre-edit coordinates.
type Edit struct {
	Span text.Range
	Text string
}

// Delta is the shift an edit applies to positions at or after its end.
// Lines applies to every such position; Chars only to positions on the
// line where the edit ended.
type Delta struct {
	Lines int
	Chars int
}

// DeltaOf computes the shift produced by e.
func DeltaOf(e Edit) Delta {
	inserted := text.Extent(e.Text)
	d := Delta{
		Lines: (inserted.Line + 1) - (e.Span.End.Line - e.Span.Start.Line + 1),
		Chars: inserted.Character - e.Span.End.Character,
	}
	if inserted.Line == 0 {
		d.Chars += e.Span.Start.Character
	}
	return d
}

// shift moves p, which must not be before e.Span.End, through the edit.
func (d Delta) shift(p text.Position, e Edit) text.Position {
	if p.Line == e.Span.End.Line {
		return text.Position{Line: p.Line + d.Lines, Character: p.Character + d.Chars}
	}
	return text.Position{Line: p.Line + d.Lines, Character: p.Character}
}

// Result is the outcome of applying one edit.
type Result struct {
	Range    text.Range
	Relation Relation
	Delta    Delta
}

// Classify reports how e relates to current.
func Classify(e Edit, current text.Range) (Relation, error) {
	if e.Span.Start.After(e.Span.End) {
		return 0, fmt.Errorf("tracker: %w: %s", text.ErrInvertedRange, e.Span)
	}
	switch {
	case e.Span.End.Before(current.Start):
		return Above, nil
	case e.Span.Start.After(current.End):
		return Below, nil
	case current.Contains(e.Span):
		return Inside, nil
	default:
		return 0, fmt.Errorf("%w: edit %s, range %s", ErrUntrackable, e.Span, current)
	}
}

// Apply returns the tracked range after e.
func Apply(e Edit, current text.Range) (Result, error) {
	rel, err := Classify(e, current)
	if err != nil {
		return Result{}, err
	}
	res := Result{Range: current, Relation: rel}
	switch rel {
	case Above:
		res.Delta = DeltaOf(e)
		res.Range = text.Range{
			Start: res.Delta.shift(current.Start, e),
			End:   res.Delta.shift(current.End, e),
		}
	case Inside:
		res.Delta = DeltaOf(e)
		res.Range.End = res.Delta.shift(current.End, e)
	}
	return res, nil
}

// ApplyAll folds a sequence of edits, each relative to the document produced
// by the previous one. It reports whether any edit changed the region's
// content. On error the range is left at its value before the failing edit.
func ApplyAll(edits []Edit, current text.Range) (text.Range, bool, error) {
	changed := false
	for i, e := range edits {
		res, err := Apply(e, current)
		if err != nil {
			return current, changed, fmt.Errorf("edit %d: %w", i, err)
		}
		current = res.Range
		if res.Relation == Inside {
			changed = true
		}
	}
	return current, changed, nil
}

// Replace returns the range occupied once the whole of current has been
// replaced by inserted.
func Replace(current text.Range, inserted string) text.Range {
	return text.Range{Start: current.Start, End: text.Advance(current.Start, inserted)}
}
