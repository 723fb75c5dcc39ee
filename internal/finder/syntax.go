package finder

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Syntax finds the outermost literal enclosing the cursor by parsing the
// document with tree-sitter. Nested literals are never returned on their
// own, so a region never contains another tracked region.
type Syntax struct {
	language string
	grammar  grammar
}

// NewSyntax returns a Syntax finder for a language with a built-in grammar.
func NewSyntax(language string) (*Syntax, error) {
	g, ok := grammarFor(language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return &Syntax{language: language, grammar: g}, nil
}

// Language returns the language id the finder parses.
func (s *Syntax) Language() string { return s.language }

// Find implements Finder. The region excludes the literal's delimiters.
func (s *Syntax) Find(ctx context.Context, src string, cursor int) (Region, bool, error) {
	if cursor < 0 || cursor > len(src) {
		return Region{}, false, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(s.grammar.language)

	content := []byte(src)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return Region{}, false, fmt.Errorf("finder: parse %s: %w", s.language, err)
	}
	defer tree.Close()

	point := pointAt(content, cursor)
	node := tree.RootNode().NamedDescendantForPointRange(point, point)

	var outer *sitter.Node
	for n := node; n != nil; n = n.Parent() {
		if s.grammar.literals.nodeTypes[n.Type()] {
			outer = n
		}
	}
	if outer == nil {
		return Region{}, false, nil
	}

	start, end := int(outer.StartByte()), int(outer.EndByte())
	// Unterminated literals parse with a zero-width closing delimiter.
	if end-start < 2 || content[start] != s.grammar.literals.open || content[end-1] != s.grammar.literals.close {
		return Region{}, false, nil
	}
	return Region{Start: start + 1, End: end - 1}, true, nil
}

// pointAt converts a byte offset to a tree-sitter point. Tree-sitter counts
// rows at "\n" only.
func pointAt(src []byte, offset int) sitter.Point {
	var p sitter.Point
	lineStart := 0
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			p.Row++
			lineStart = i + 1
		}
	}
	p.Column = uint32(offset - lineStart)
	return p
}
