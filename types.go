package subdoc

import (
	"github.com/jward/subdoc/internal/finder"
	"github.com/jward/subdoc/internal/host"
	"github.com/jward/subdoc/internal/store"
	"github.com/jward/subdoc/internal/text"
)

// Public type aliases for the internal types used by the Engine API.
// These are Go type aliases (=), so no conversion is needed.

type Position = text.Position
type Range = text.Range

type DocumentID = host.DocumentID
type Host = host.Host
type Snapshot = host.Snapshot

type Region = finder.Region
type Finder = finder.Finder
type FinderFunc = finder.Func

type Store = store.Store
type HistoryEvent = store.Event

// LoadScriptFinder loads a Risor region script for documents of language.
func LoadScriptFinder(path, language string) (Finder, error) {
	s, err := finder.LoadScript(path, language)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPatternFinder compiles a three-group regular expression whose second
// group is the region.
func NewPatternFinder(rule string) (Finder, error) {
	p, err := finder.NewPattern(rule)
	if err != nil {
		return nil, err
	}
	return p, nil
}
