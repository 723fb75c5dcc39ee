// Package finder locates the embedded region under a cursor.
//
// Three finders are provided: Syntax parses the document with tree-sitter
// and returns the outermost literal around the cursor, Pattern scans with a
// user-supplied regular expression, and Script runs a user-supplied Risor
// program. A Registry picks the finder for a document's language.
package finder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupportedLanguage is returned when no grammar exists for a language.
var ErrUnsupportedLanguage = errors.New("finder: unsupported language")

// Region is a byte span [Start, End) inside a document.
type Region struct {
	Start int
	End   int
}

// Len returns the region length in bytes.
func (r Region) Len() int { return r.End - r.Start }

// Contains reports whether offset lies within the region, ends included.
func (r Region) Contains(offset int) bool {
	return r.Start <= offset && offset <= r.End
}

// Finder locates the region enclosing cursor in src.
type Finder interface {
	Find(ctx context.Context, src string, cursor int) (Region, bool, error)
}

// Func adapts a function to Finder.
type Func func(ctx context.Context, src string, cursor int) (Region, bool, error)

func (f Func) Find(ctx context.Context, src string, cursor int) (Region, bool, error) {
	return f(ctx, src, cursor)
}

// InvalidPatternError reports a malformed user-supplied matching rule.
type InvalidPatternError struct {
	Rule string
	Err  error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid region pattern %q: %v", e.Rule, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// Registry maps language ids to finders. Languages with a built-in grammar
// fall back to a Syntax finder when nothing is registered for them.
type Registry struct {
	mu      sync.RWMutex
	finders map[string]Finder
	syntax  map[string]*Syntax
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		finders: make(map[string]Finder),
		syntax:  make(map[string]*Syntax),
	}
}

// Register installs f for language, replacing any previous finder.
func (r *Registry) Register(language string, f Finder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finders[language] = f
}

// Lookup returns the finder for language.
func (r *Registry) Lookup(language string) (Finder, bool) {
	r.mu.RLock()
	f, ok := r.finders[language]
	r.mu.RUnlock()
	if ok {
		return f, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.syntax[language]; ok {
		return s, true
	}
	s, err := NewSyntax(language)
	if err != nil {
		return nil, false
	}
	r.syntax[language] = s
	return s, true
}

// Languages returns every language with a finder, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for l := range r.finders {
		seen[l] = true
	}
	for _, l := range SyntaxLanguages() {
		seen[l] = true
	}
	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
