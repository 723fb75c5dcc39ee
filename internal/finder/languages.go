package finder

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extToLanguage maps file extensions to language ids.
var extToLanguage = map[string]string{
	".go":       "go",
	".ts":       "typescript",
	".mts":      "typescript",
	".cts":      "typescript",
	".tsx":      "tsx",
	".js":       "javascript",
	".mjs":      "javascript",
	".cjs":      "javascript",
	".jsx":      "javascript",
	".md":       "markdown",
	".markdown": "markdown",
	".html":     "html",
	".htm":      "html",
	".vue":      "vue",
	".py":       "python",
	".sql":      "sql",
	".css":      "css",
}

// literalSpec describes the literal nodes a grammar treats as regions.
type literalSpec struct {
	nodeTypes map[string]bool
	open      byte
	close     byte
}

var templateLiteral = literalSpec{
	nodeTypes: map[string]bool{"template_string": true},
	open:      '`',
	close:     '`',
}

var rawStringLiteral = literalSpec{
	nodeTypes: map[string]bool{"raw_string_literal": true},
	open:      '`',
	close:     '`',
}

type grammar struct {
	language *sitter.Language
	literals literalSpec
}

// grammars maps language ids to tree-sitter grammars. Lazily initialized on
// first use via sync.Once.
var (
	grammars     map[string]grammar
	grammarsOnce sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		grammars = map[string]grammar{
			"javascript": {language: javascript.GetLanguage(), literals: templateLiteral},
			"typescript": {language: ts.GetLanguage(), literals: templateLiteral},
			"tsx":        {language: tsx.GetLanguage(), literals: templateLiteral},
			"go":         {language: golang.GetLanguage(), literals: rawStringLiteral},
		}
	})
}

// LanguageForFile returns the language id for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// grammarFor returns the grammar for a language id.
func grammarFor(lang string) (grammar, bool) {
	initGrammars()
	g, ok := grammars[lang]
	return g, ok
}

// SyntaxLanguages returns the language ids with a built-in syntax finder.
func SyntaxLanguages() []string {
	initGrammars()
	langs := make([]string, 0, len(grammars))
	for l := range grammars {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
