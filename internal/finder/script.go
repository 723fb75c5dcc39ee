package finder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/tliron/commonlog"
)

var scriptLog = commonlog.GetLogger("subdoc.script")

// Script finds regions by running a Risor program. The program sees the
// globals document, cursor and language plus the tree-sitter helpers
// parse_src, node_text, node_child and query, and reports its answer by
// calling region(start, end). A program that never calls region finds
// nothing.
type Script struct {
	name      string
	source    string
	language  string
	sourceDir string
	fsys      fs.FS
}

// ScriptOption configures a Script.
type ScriptOption func(*Script)

// WithScriptFS resolves import statements against fsys instead of the
// directory the script was loaded from.
func WithScriptFS(fsys fs.FS) ScriptOption {
	return func(s *Script) {
		s.fsys = fsys
	}
}

// NewScript wraps inline Risor source. name labels errors and log output.
func NewScript(name, language, source string, opts ...ScriptOption) *Script {
	s := &Script{name: name, source: source, language: language}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadScript reads a .risor file from disk. Imports resolve relative to the
// file's directory.
func LoadScript(path, language string, opts ...ScriptOption) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("finder: loading script %s: %w", path, err)
	}
	s := NewScript(path, language, string(data), opts...)
	s.sourceDir = filepath.Dir(path)
	return s, nil
}

// LoadScriptFS reads a script from fsys.
func LoadScriptFS(fsys fs.FS, path, language string) (*Script, error) {
	fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
	data, err := fs.ReadFile(fsys, fsPath)
	if err != nil {
		return nil, fmt.Errorf("finder: loading script %s from fs: %w", fsPath, err)
	}
	return NewScript(fsPath, language, string(data), WithScriptFS(fsys)), nil
}

// Name returns the label the script was created with.
func (s *Script) Name() string { return s.name }

// Find implements Finder. Script failures, and regions outside the
// document, are reported as *InvalidPatternError.
func (s *Script) Find(ctx context.Context, src string, cursor int) (Region, bool, error) {
	sources := newSourceStore()
	defer sources.close()

	var sink regionSink
	globals := map[string]any{
		"document":   src,
		"cursor":     int64(cursor),
		"language":   s.language,
		"parse_src":  makeParseSrcFn(sources),
		"node_text":  makeNodeTextFn(sources),
		"node_child": makeNodeChildFn(),
		"query":      makeQueryFn(sources),
		"region":     makeRegionFn(&sink),
		"log":        mustProxy(&logObject{log: scriptLog}),
	}

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := s.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, s.source, opts...); err != nil {
		return Region{}, false, &InvalidPatternError{Rule: s.name, Err: err}
	}
	if !sink.found {
		return Region{}, false, nil
	}

	r := sink.region
	if r.Start < 0 || r.End < r.Start || r.End > len(src) {
		return Region{}, false, &InvalidPatternError{
			Rule: s.name,
			Err:  fmt.Errorf("region [%d, %d) outside document of %d bytes", r.Start, r.End, len(src)),
		}
	}
	scriptLog.Debugf("script %s found region [%d, %d)", s.name, r.Start, r.End)
	return r, true, nil
}

func (s *Script) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if s.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    s.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if s.sourceDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   s.sourceDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}
