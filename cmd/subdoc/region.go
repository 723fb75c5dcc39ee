package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/subdoc"
	"github.com/jward/subdoc/internal/finder"
	"github.com/jward/subdoc/internal/memhost"
	"github.com/jward/subdoc/internal/text"
)

var (
	flagOffset      int
	flagLine        int
	flagCol         int
	flagDocLanguage string
	flagAs          string
	flagFrom        string
	flagWrite       bool
)

func addCursorFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagOffset, "offset", -1, "cursor byte offset")
	cmd.Flags().IntVar(&flagLine, "line", -1, "cursor line (0-based)")
	cmd.Flags().IntVar(&flagCol, "col", -1, "cursor byte column (0-based)")
	cmd.Flags().StringVar(&flagDocLanguage, "language", "", "document language (default: inferred from the file extension)")
}

var findCmd = &cobra.Command{
	Use:   "find <file>",
	Short: "Locate the embedded region under the cursor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegion(cmd.Context(), "find", args[0])
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the embedded region under the cursor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegion(cmd.Context(), "extract", args[0])
	},
}

var spliceCmd = &cobra.Command{
	Use:   "splice <file>",
	Short: "Replace the embedded region under the cursor through a linked subdocument",
	Long:  "Opens the region as a subdocument, replaces the subdocument's content with the text read from --from (default stdin) and syncs it back into the file's content.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSplice,
}

func init() {
	addCursorFlags(findCmd)
	addCursorFlags(extractCmd)
	addCursorFlags(spliceCmd)
	spliceCmd.Flags().StringVar(&flagAs, "as", "", "subdocument language (default: the configured default language)")
	spliceCmd.Flags().StringVar(&flagFrom, "from", "-", "file holding the new region text, or - for stdin")
	spliceCmd.Flags().BoolVar(&flagWrite, "write", false, "write the result back to the file instead of printing it")
}

// cursorSpec is the cursor given on the command line: an offset, or a line
// and column. Unset values are negative.
type cursorSpec struct {
	offset int
	line   int
	col    int
}

func cursorFromFlags() cursorSpec {
	return cursorSpec{offset: flagOffset, line: flagLine, col: flagCol}
}

func (c cursorSpec) position(content string) (text.Position, error) {
	if c.offset >= 0 {
		return text.PositionAt(content, c.offset)
	}
	if c.line < 0 || c.col < 0 {
		return text.Position{}, errors.New("requires --offset or both --line and --col")
	}
	p := text.Position{Line: c.line, Character: c.col}
	if _, err := text.OffsetAt(content, p); err != nil {
		return text.Position{}, err
	}
	return p, nil
}

// documentLanguage returns override, or the language of path's extension.
func documentLanguage(path, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	lang, ok := finder.LanguageForFile(path)
	if !ok {
		return "", fmt.Errorf("cannot infer the language of %s: use --language", path)
	}
	return lang, nil
}

// session is one file opened on an in-memory host with an engine on top.
type session struct {
	host    *memhost.Host
	engine  *subdoc.Engine
	doc     subdoc.DocumentID
	file    string
	lang    string
	content string
}

func newSession(cfg *subdoc.Config, file, lang, content string) (*session, error) {
	h := memhost.New()
	doc := h.AddDocument(filepath.Base(file), lang, content)
	e, err := subdoc.New(h, subdoc.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return &session{host: h, engine: e, doc: doc, file: file, lang: lang, content: content}, nil
}

func (s *session) close(ctx context.Context) {
	_ = s.engine.Shutdown(ctx)
}

func openSession(path string) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	lang, err := documentLanguage(path, flagDocLanguage)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return newSession(cfg, path, lang, string(data))
}

func toCLIRange(r text.Range) CLIRange {
	return CLIRange{
		StartLine: r.Start.Line,
		StartCol:  r.Start.Character,
		EndLine:   r.End.Line,
		EndCol:    r.End.Character,
	}
}

// locate finds the region under cursor.
func (s *session) locate(ctx context.Context, cursor cursorSpec) (CLIRegion, error) {
	pos, err := cursor.position(s.content)
	if err != nil {
		return CLIRegion{}, err
	}
	r, err := s.engine.FindRegion(ctx, s.doc, pos)
	if err != nil {
		return CLIRegion{}, err
	}
	rng, err := text.RangeOf(s.content, r.Start, r.End)
	if err != nil {
		return CLIRegion{}, err
	}
	return CLIRegion{
		File:        s.file,
		Language:    s.lang,
		StartOffset: r.Start,
		EndOffset:   r.End,
		Range:       toCLIRange(rng),
		Text:        s.content[r.Start:r.End],
	}, nil
}

// splice replaces the region under cursor with replacement by editing a
// linked subdocument and letting the engine sync it back.
func (s *session) splice(ctx context.Context, cursor cursorSpec, language, replacement string) (CLISplice, error) {
	pos, err := cursor.position(s.content)
	if err != nil {
		return CLISplice{}, err
	}
	if language == "" {
		language = "plaintext"
	}
	l, err := s.engine.Open(ctx, subdoc.OpenRequest{Document: s.doc, Cursor: pos, Language: language})
	if err != nil {
		return CLISplice{}, err
	}
	before := l.Range()

	if err := s.host.SetText(l.Sub(), replacement); err != nil {
		return CLISplice{}, err
	}
	if err := l.Flush(ctx); err != nil {
		return CLISplice{}, fmt.Errorf("syncing: %w", err)
	}
	if l.State() != subdoc.Active {
		return CLISplice{}, fmt.Errorf("link closed: %s: %w", l.Reason(), l.Err())
	}

	return CLISplice{
		File:     s.file,
		LinkID:   l.ID(),
		Language: language,
		Before:   toCLIRange(before),
		After:    toCLIRange(l.Range()),
		Content:  s.host.Text(s.doc),
	}, nil
}

func runRegion(ctx context.Context, command, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(path)
	if err != nil {
		return outputError(command, err)
	}
	defer s.close(ctx)

	region, err := s.locate(ctx, cursorFromFlags())
	if err != nil {
		return outputError(command, err)
	}
	return outputResult(CLIResult{Command: command, Results: region})
}

func readReplacement(from string, stdin io.Reader) (string, error) {
	if from == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", from, err)
	}
	return string(data), nil
}

func runSplice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	path := args[0]

	replacement, err := readReplacement(flagFrom, cmd.InOrStdin())
	if err != nil {
		return outputError("splice", err)
	}
	s, err := openSession(path)
	if err != nil {
		return outputError("splice", err)
	}
	defer s.close(ctx)

	language := flagAs
	if language == "" {
		cfg, err := loadConfig()
		if err != nil {
			return outputError("splice", err)
		}
		language = cfg.DefaultLanguage
	}

	res, err := s.splice(ctx, cursorFromFlags(), language, replacement)
	if err != nil {
		return outputError("splice", err)
	}
	if flagWrite {
		info, err := os.Stat(path)
		if err != nil {
			return outputError("splice", err)
		}
		if err := os.WriteFile(path, []byte(res.Content), info.Mode().Perm()); err != nil {
			return outputError("splice", fmt.Errorf("writing %s: %w", path, err))
		}
		res.Written = true
		res.Content = ""
	}
	return outputResult(CLIResult{Command: "splice", Results: res})
}
