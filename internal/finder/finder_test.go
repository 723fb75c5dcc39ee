package finder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"main.go", "go", true},
		{"app.ts", "typescript", true},
		{"app.tsx", "tsx", true},
		{"app.js", "javascript", true},
		{"app.mjs", "javascript", true},
		{"README.md", "markdown", true},
		{"index.html", "html", true},
		{"file.txt", "", false},
		{"Makefile", "", false},
		{"path/to/file.GO", "go", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// at returns the offset of the first occurrence of marker in src.
func at(t *testing.T, src, marker string) int {
	t.Helper()
	i := strings.Index(src, marker)
	require.GreaterOrEqual(t, i, 0, "marker %q not in source", marker)
	return i
}

func TestSyntax_Find(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	jsSrc := "const page = html`<p>${name}</p>`;\nconst n = 1;\n"
	nested := "const a = `outer ${`inner`} tail`;\n"
	goSrc := "package main\n\nvar q = `select 1`\n"

	tests := []struct {
		name     string
		language string
		src      string
		cursor   int
		want     string
		found    bool
	}{
		{"js body", "javascript", jsSrc, at(t, jsSrc, "<p>") + 1, "<p>${name}</p>", true},
		{"js substitution", "javascript", jsSrc, at(t, jsSrc, "name}"), "<p>${name}</p>", true},
		{"js opening delimiter", "javascript", jsSrc, at(t, jsSrc, "`<p>"), "<p>${name}</p>", true},
		{"js outside", "javascript", jsSrc, at(t, jsSrc, "const n"), "", false},
		{"ts body", "typescript", jsSrc, at(t, jsSrc, "</p>"), "<p>${name}</p>", true},
		{"nested returns outermost", "javascript", nested, at(t, nested, "inner"), "outer ${`inner`} tail", true},
		{"go raw string", "go", goSrc, at(t, goSrc, "select"), "select 1", true},
		{"go outside", "go", goSrc, at(t, goSrc, "package"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewSyntax(tt.language)
			require.NoError(t, err)

			r, found, err := f.Find(ctx, tt.src, tt.cursor)
			require.NoError(t, err)
			require.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.want, tt.src[r.Start:r.End])
			}
		})
	}
}

func TestSyntax_CursorOutOfRange(t *testing.T) {
	t.Parallel()
	f, err := NewSyntax("javascript")
	require.NoError(t, err)

	_, found, err := f.Find(context.Background(), "`a`", 10)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewSyntax_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := NewSyntax("cobol")
	require.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestPointAt(t *testing.T) {
	t.Parallel()
	src := []byte("ab\r\ncd\ne")
	p := pointAt(src, 5)
	assert.EqualValues(t, 1, p.Row)
	assert.EqualValues(t, 1, p.Column)

	p = pointAt(src, 8)
	assert.EqualValues(t, 2, p.Row)
	assert.EqualValues(t, 1, p.Column)
}

func TestPattern_Find(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p, err := NewPattern("(html`)([^`]*)(`)")
	require.NoError(t, err)
	assert.Equal(t, "(html`)([^`]*)(`)", p.Rule())

	src := "a = html`one`; b = html`two`;"
	first := at(t, src, "html`one")
	second := at(t, src, "html`two")

	tests := []struct {
		name   string
		cursor int
		want   string
		found  bool
	}{
		{"inside first", first + 6, "one", true},
		{"match start inclusive", first, "one", true},
		{"match end inclusive", first + len("html`one`"), "one", true},
		{"inside second", second + 7, "two", true},
		{"between matches", second - 2, "", false},
		{"before any match", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, found, err := p.Find(ctx, src, tt.cursor)
			require.NoError(t, err)
			require.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.want, src[r.Start:r.End])
			}
		})
	}
}

func TestPattern_EmptyBody(t *testing.T) {
	t.Parallel()
	p, err := NewPattern("(<style>)(.*?)(</style>)")
	require.NoError(t, err)

	src := "<style></style>"
	r, found, err := p.Find(context.Background(), src, 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Region{Start: 7, End: 7}, r)
	assert.Zero(t, r.Len())
}

func TestNewPattern_Invalid(t *testing.T) {
	t.Parallel()

	for _, rule := range []string{"(a)(b)", "(unclosed", "(a)(b)(c"} {
		t.Run(rule, func(t *testing.T) {
			t.Parallel()
			_, err := NewPattern(rule)
			var ipe *InvalidPatternError
			require.True(t, errors.As(err, &ipe), "got %v", err)
			assert.Equal(t, rule, ipe.Rule)
			assert.Contains(t, err.Error(), rule)
		})
	}
}

func TestPattern_CancelledContext(t *testing.T) {
	t.Parallel()
	p, err := NewPattern("(a)(b)(c)")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = p.Find(ctx, "abc", 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	f, ok := reg.Lookup("go")
	require.True(t, ok)
	assert.IsType(t, &Syntax{}, f)

	again, _ := reg.Lookup("go")
	assert.Same(t, f, again)

	_, ok = reg.Lookup("plaintext")
	assert.False(t, ok)

	p, err := NewPattern("(<<)(.*)(>>)")
	require.NoError(t, err)
	reg.Register("go", p)
	reg.Register("plaintext", p)

	f, ok = reg.Lookup("go")
	require.True(t, ok)
	assert.Same(t, p, f)

	assert.Equal(t, []string{"go", "javascript", "plaintext", "tsx", "typescript"}, reg.Languages())
}

func TestFunc(t *testing.T) {
	t.Parallel()
	var f Finder = Func(func(ctx context.Context, src string, cursor int) (Region, bool, error) {
		return Region{Start: cursor, End: len(src)}, true, nil
	})
	r, ok, err := f.Find(context.Background(), "abcdef", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Region{Start: 2, End: 6}, r)
	assert.True(t, r.Contains(6))
	assert.False(t, r.Contains(7))
}
