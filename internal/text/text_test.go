package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Position
	}{
		{"", Position{0, 0}},
		{"abc", Position{0, 3}},
		{"abc\n", Position{1, 0}},
		{"a\nbc", Position{1, 2}},
		{"a\r\nbc", Position{1, 2}},
		{"a\rbc", Position{1, 2}},
		{"\n\n\n", Position{3, 0}},
		{"a\r\n\r\nb", Position{2, 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Extent(tt.in), "Extent(%q)", tt.in)
	}
}

func TestLineCountAndLastLineLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, LineCount(""))
	assert.Equal(t, 3, LineCount("a\nb\nccc"))
	assert.Equal(t, 3, LastLineLength("a\nb\nccc"))
	assert.Equal(t, 0, LastLineLength("a\n"))
}

func TestAdvance(t *testing.T) {
	t.Parallel()

	start := Position{Line: 2, Character: 5}
	assert.Equal(t, Position{2, 8}, Advance(start, "abc"))
	assert.Equal(t, Position{2, 5}, Advance(start, ""))
	assert.Equal(t, Position{4, 2}, Advance(start, "x\ny\nzz"))
	assert.Equal(t, Position{3, 0}, Advance(start, "tail\n"))
}

func TestPositionAtOffsetAtRoundTrip(t *testing.T) {
	t.Parallel()

	s := "first\nsecond\r\nthird\rlast"
	for off := 0; off <= len(s); off++ {
		if off > 0 && s[off-1] == '\r' && off < len(s) && s[off] == '\n' {
			continue // between \r and \n
		}
		p, err := PositionAt(s, off)
		require.NoError(t, err)
		back, err := OffsetAt(s, p)
		require.NoError(t, err)
		assert.Equal(t, off, back, "offset %d -> %s", off, p)
	}
}

func TestPositionAt(t *testing.T) {
	t.Parallel()

	s := "ab\r\ncd"
	p, err := PositionAt(s, 3) // between \r and \n
	require.NoError(t, err)
	assert.Equal(t, Position{0, 2}, p)

	p, err = PositionAt(s, 5)
	require.NoError(t, err)
	assert.Equal(t, Position{1, 1}, p)

	_, err = PositionAt(s, 7)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = PositionAt(s, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestOffsetAt_OutOfBounds(t *testing.T) {
	t.Parallel()

	s := "ab\ncd"
	_, err := OffsetAt(s, Position{0, 3})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = OffsetAt(s, Position{2, 0})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	off, err := OffsetAt(s, Position{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 5, off)
}

func TestSliceAndReplace(t *testing.T) {
	t.Parallel()

	s := "const s = `Hello ${1+1}`;"
	r := NewRange(0, 11, 0, 23)
	got, err := Slice(s, r)
	require.NoError(t, err)
	assert.Equal(t, "Hello ${1+1}", got)

	out, err := Replace(s, r, "Hi")
	require.NoError(t, err)
	assert.Equal(t, "const s = `Hi`;", out)

	_, err = Slice(s, NewRange(0, 5, 0, 2))
	assert.ErrorIs(t, err, ErrInvertedRange)
}

func TestReplace_JoinsLineBreak(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    string
		r    Range
		repl string
		want string
		err  bool
	}{
		{"newline after lone CR", "a\rb", NewRange(1, 0, 1, 0), "\n", "", true},
		{"CR before LF", "a\nb", NewRange(0, 1, 0, 1), "\r", "", true},
		{"delete between CR and LF", "a\rx\nb", NewRange(1, 0, 1, 1), "", "", true},
		{"pair inside replacement", "ab", NewRange(0, 1, 0, 1), "\r\n", "a\r\nb", false},
		{"CR then text", "a\rb", NewRange(1, 0, 1, 0), "x\n", "a\rx\nb", false},
		{"replace whole CRLF line", "a\r\nb", NewRange(0, 0, 1, 0), "\n", "\nb", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := Replace(tt.s, tt.r, tt.repl)
			if tt.err {
				require.ErrorIs(t, err, ErrJoinsLineBreak)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRangeOf(t *testing.T) {
	t.Parallel()

	s := "a\nbcd\nef"
	r, err := RangeOf(s, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, NewRange(1, 1, 2, 1), r)

	_, err = RangeOf(s, 4, 2)
	assert.ErrorIs(t, err, ErrInvertedRange)
}

func TestClamp(t *testing.T) {
	t.Parallel()

	s := "abc\nde"
	assert.Equal(t, Position{0, 3}, Clamp(s, Position{0, 10}))
	assert.Equal(t, Position{1, 2}, Clamp(s, Position{5, 0}))
	assert.Equal(t, Position{0, 0}, Clamp(s, Position{-1, 4}))
	assert.Equal(t, Position{1, 0}, Clamp(s, Position{1, -3}))
}

func TestRangePredicates(t *testing.T) {
	t.Parallel()

	outer := NewRange(1, 0, 3, 4)
	assert.True(t, outer.Contains(NewRange(1, 0, 1, 0)))
	assert.True(t, outer.Contains(NewRange(2, 5, 3, 4)))
	assert.False(t, outer.Contains(NewRange(0, 9, 1, 2)))
	assert.False(t, outer.Contains(NewRange(3, 3, 3, 5)))
	assert.True(t, NewRange(2, 2, 2, 2).IsEmpty())
	assert.True(t, NewRange(2, 0, 2, 9).IsSingleLine())
	assert.True(t, Position{1, 2}.Before(Position{2, 0}))
	assert.True(t, Position{1, 3}.After(Position{1, 2}))
	assert.Equal(t, "[1:0-3:4]", outer.String())
}
