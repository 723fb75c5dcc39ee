package subdoc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"

	"github.com/jward/subdoc/internal/finder"
	"github.com/jward/subdoc/internal/host"
	"github.com/jward/subdoc/internal/store"
	"github.com/jward/subdoc/internal/text"
)

var engineLog = commonlog.GetLogger("subdoc.engine")

// recentLanguages is how many past picks head the language picker.
const recentLanguages = 5

// EventKind names a link lifecycle event.
type EventKind = store.EventKind

const (
	EventOpened       = store.EventOpened
	EventSyncedToHost = store.EventSyncedToHost
	EventSyncedToSub  = store.EventSyncedToSub
	EventClosed       = store.EventClosed
)

// Event is delivered to hooks registered with WithEventHook.
type Event struct {
	Kind   EventKind
	Link   *Link
	Reason Reason
	At     time.Time
}

// Engine opens embedded regions of host documents as subdocuments and keeps
// every resulting Link in sync. One Engine serves one Host.
type Engine struct {
	host     Host
	finders  *finder.Registry
	registry *Registry

	interval        time.Duration
	defaultLanguage string
	reuse           bool

	history     store.Recorder
	historyPath string
	ownsHistory bool
	hooks       []func(Event)

	// opening is held for the whole of an open. Shutdown takes it too, so
	// an open in progress finishes before links are closed.
	opening sync.Mutex
	closed  atomic.Bool

	mu           sync.Mutex
	lastLanguage string

	optErr error
}

// Option configures an Engine.
type Option func(*Engine)

// WithThrottle sets the minimum interval between two syncs in one direction.
func WithThrottle(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithFinder registers the region finder for documents of a language. It
// takes precedence over the built-in syntax finder.
func WithFinder(language string, f Finder) Option {
	return func(e *Engine) {
		e.finders.Register(language, f)
	}
}

// WithPatterns registers a three-group regular expression per language.
// The second group is the region.
func WithPatterns(patterns map[string]string) Option {
	return func(e *Engine) {
		for _, lang := range sortedKeys(patterns) {
			p, err := finder.NewPattern(patterns[lang])
			if err != nil {
				e.optErr = errors.Join(e.optErr, fmt.Errorf("pattern for %s: %w", lang, err))
				continue
			}
			e.finders.Register(lang, p)
		}
	}
}

// WithDefaultLanguage sets the language offered first before any pick has
// been made.
func WithDefaultLanguage(language string) Option {
	return func(e *Engine) {
		e.defaultLanguage = language
	}
}

// WithHistory persists language picks and link events in a SQLite database
// at path. The database is created if needed and closed by Shutdown.
func WithHistory(path string) Option {
	return func(e *Engine) {
		e.historyPath = path
	}
}

// WithRecorder uses r for history instead of opening a database. The caller
// keeps ownership of r.
func WithRecorder(r store.Recorder) Option {
	return func(e *Engine) {
		e.history = r
	}
}

// WithEventHook calls fn for every link lifecycle event. Hooks run on the
// goroutine that caused the event and must not block on the link.
func WithEventHook(fn func(Event)) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, fn)
	}
}

// WithReuse keeps one named subdocument per host and language open across
// links. A torn down link leaves its reason in the subdocument instead of
// closing it.
func WithReuse(reuse bool) Option {
	return func(e *Engine) {
		e.reuse = reuse
	}
}

// WithConfig applies every setting of cfg.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) {
		opts, err := cfg.Options()
		if err != nil {
			e.optErr = errors.Join(e.optErr, err)
			return
		}
		for _, opt := range opts {
			opt(e)
		}
	}
}

// New creates an Engine for h.
func New(h Host, opts ...Option) (*Engine, error) {
	if h == nil {
		return nil, errors.New("subdoc: nil host")
	}
	e := &Engine{
		host:            h,
		finders:         finder.NewRegistry(),
		registry:        NewRegistry(),
		interval:        DefaultThrottle,
		defaultLanguage: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.optErr != nil {
		return nil, fmt.Errorf("subdoc: %w", e.optErr)
	}

	if e.history == nil && e.historyPath != "" {
		s, err := openHistory(e.historyPath)
		if err != nil {
			return nil, err
		}
		e.history = s
		e.ownsHistory = true
	}
	return e, nil
}

func openHistory(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("subdoc: create history dir: %w", err)
		}
	}
	s, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("subdoc: open history: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("subdoc: migrate history: %w", err)
	}
	return s, nil
}

// Registry returns the engine's link registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Languages lists the document languages a region finder exists for.
func (e *Engine) Languages() []string { return e.finders.Languages() }

// OpenRequest asks Open for the region at Cursor in Document. An empty
// Language prompts the user with the host's language picker.
type OpenRequest struct {
	Document DocumentID
	Cursor   Position
	Language string
}

// Open opens the region under the cursor as a subdocument. Opening from a
// linked subdocument closes its link instead and returns it.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (*Link, error) {
	if err := e.beginOpen(); err != nil {
		return nil, err
	}
	defer e.opening.Unlock()

	if hostDoc, ok := e.registry.HostOf(req.Document); ok {
		if l, ok := e.registry.Get(hostDoc); ok {
			engineLog.Infof("toggle: closing link %s from %s", l.id, req.Document)
			if err := l.Close(ctx, ReasonToggle); err != nil && !errors.Is(err, ErrClosed) {
				return nil, err
			}
			return l, nil
		}
	}

	snap, err := e.host.Snapshot(req.Document)
	if err != nil {
		return nil, fmt.Errorf("subdoc: open: %w", err)
	}
	region, err := e.findRegion(ctx, snap, req.Cursor)
	if err != nil {
		e.report(ctx, err)
		return nil, err
	}

	language := req.Language
	if language == "" {
		language, err = e.pickLanguage(ctx)
		if err != nil {
			return nil, err
		}
	}
	return e.activate(ctx, snap, region, language, req.Cursor)
}

// beginOpen takes the open guard, failing with ErrBusy while another open
// runs and with ErrClosed once Shutdown has started.
func (e *Engine) beginOpen() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.opening.TryLock() {
		if e.closed.Load() {
			return ErrClosed
		}
		return ErrBusy
	}
	if e.closed.Load() {
		e.opening.Unlock()
		return ErrClosed
	}
	return nil
}

// OpenActive opens the region under the cursor of the focused editor.
func (e *Engine) OpenActive(ctx context.Context, language string) (*Link, error) {
	doc, cursor, ok := e.host.ActiveEditor()
	if !ok {
		return nil, errors.New("subdoc: no active editor")
	}
	return e.Open(ctx, OpenRequest{Document: doc, Cursor: cursor, Language: language})
}

// OpenRegion links a known region of doc without consulting a finder.
func (e *Engine) OpenRegion(ctx context.Context, doc DocumentID, region Region, language string, cursor Position) (*Link, error) {
	if err := e.beginOpen(); err != nil {
		return nil, err
	}
	defer e.opening.Unlock()

	snap, err := e.host.Snapshot(doc)
	if err != nil {
		return nil, fmt.Errorf("subdoc: open: %w", err)
	}
	if region.Start < 0 || region.End < region.Start || region.End > len(snap.Text) {
		return nil, fmt.Errorf("subdoc: open: region [%d, %d) outside document of %d bytes", region.Start, region.End, len(snap.Text))
	}
	if language == "" {
		language = e.defaultLanguage
	}
	return e.activate(ctx, snap, region, language, cursor)
}

// FindRegion returns the region enclosing cursor in doc.
func (e *Engine) FindRegion(ctx context.Context, doc DocumentID, cursor Position) (Region, error) {
	snap, err := e.host.Snapshot(doc)
	if err != nil {
		return Region{}, fmt.Errorf("subdoc: find region: %w", err)
	}
	return e.findRegion(ctx, snap, cursor)
}

func (e *Engine) findRegion(ctx context.Context, snap Snapshot, cursor Position) (Region, error) {
	f, ok := e.finders.Lookup(snap.Language)
	if !ok {
		engineLog.Debugf("no finder for language %q", snap.Language)
		return Region{}, ErrRegionNotFound
	}
	offset, err := text.OffsetAt(snap.Text, text.Clamp(snap.Text, cursor))
	if err != nil {
		return Region{}, fmt.Errorf("subdoc: find region: %w", err)
	}
	region, found, err := f.Find(ctx, snap.Text, offset)
	if err != nil {
		return Region{}, err
	}
	if !found {
		return Region{}, ErrRegionNotFound
	}
	return region, nil
}

// report shows a failed lookup to the user.
func (e *Engine) report(ctx context.Context, err error) {
	var ipe *InvalidPatternError
	var msgErr error
	switch {
	case errors.As(err, &ipe):
		msgErr = e.host.ShowMessage(ctx, host.LevelError, ipe.Error())
	case errors.Is(err, ErrRegionNotFound):
		msgErr = e.host.ShowMessage(ctx, host.LevelWarning, "No embedded region found at the cursor.")
	}
	if msgErr != nil {
		engineLog.Warningf("showing message: %s", msgErr)
	}
}

// pickLanguage asks the user for the subdocument language. Recent picks are
// offered first.
func (e *Engine) pickLanguage(ctx context.Context) (string, error) {
	available, err := e.host.Languages(ctx)
	if err != nil {
		return "", &HostOperationError{Op: "languages", Err: err}
	}
	options := orderLanguages(e.recentLanguages(), available)
	choice, ok, err := e.host.Pick(ctx, options, "Open in Language Mode")
	if err != nil {
		return "", &HostOperationError{Op: "pick", Err: err}
	}
	if !ok || choice == "" {
		return "", ErrCancelled
	}
	e.recordPick(choice)
	return choice, nil
}

func (e *Engine) recentLanguages() []string {
	if e.history != nil {
		recent, err := e.history.RecentLanguages(recentLanguages)
		if err != nil {
			engineLog.Warningf("reading language history: %s", err)
		} else if len(recent) > 0 {
			return recent
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastLanguage != "" {
		return []string{e.lastLanguage}
	}
	if e.defaultLanguage != "" {
		return []string{e.defaultLanguage}
	}
	return nil
}

func (e *Engine) recordPick(language string) {
	e.mu.Lock()
	e.lastLanguage = language
	e.mu.Unlock()
	if e.history == nil {
		return
	}
	if err := e.history.RecordPick(language); err != nil {
		engineLog.Warningf("recording language pick: %s", err)
	}
}

// orderLanguages puts recent ahead of the remaining available languages.
// Recent languages the host does not offer are dropped unless the host
// offers none at all.
func orderLanguages(recent, available []string) []string {
	offered := make(map[string]bool, len(available))
	for _, l := range available {
		offered[l] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, l := range recent {
		if seen[l] || (len(available) > 0 && !offered[l]) {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	for _, l := range available {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// activate replaces any link on the host document with a new one for region.
func (e *Engine) activate(ctx context.Context, snap Snapshot, region Region, language string, cursor Position) (*Link, error) {
	if old, ok := e.registry.Get(snap.ID); ok {
		if err := old.Close(ctx, ReasonReplaced); err != nil && !errors.Is(err, ErrClosed) {
			return nil, err
		}
		// Closing the old link may focus or edit documents.
		fresh, err := e.host.Snapshot(snap.ID)
		if err != nil {
			return nil, fmt.Errorf("subdoc: open: %w", err)
		}
		if fresh.Version != snap.Version {
			return nil, fmt.Errorf("subdoc: open: %w: document changed while opening", ErrUntrackable)
		}
	}

	rng, err := text.RangeOf(snap.Text, region.Start, region.End)
	if err != nil {
		return nil, fmt.Errorf("subdoc: open: %w", err)
	}
	l := newLink(e, snap.ID, language, rng)
	e.registry.Set(snap.ID, l)
	if err := l.activate(ctx, snap.Version, cursor); err != nil {
		return nil, err
	}
	return l, nil
}

// openSubdocument returns the subdocument for a new link and whether it was
// opened for it.
func (e *Engine) openSubdocument(ctx context.Context, hostSnap Snapshot, language string) (DocumentID, bool, error) {
	if !e.reuse {
		id, err := e.host.OpenDocument(ctx, host.OpenSpec{Language: language})
		return id, true, err
	}
	if sub, ok := e.registry.Reusable(hostSnap.ID, language); ok {
		if _, owned := e.registry.HostOf(sub); isOpen(e.host, sub) && !owned {
			return sub, false, nil
		}
		e.registry.Forget(sub)
	}
	name := hostSnap.Name + ".virtual." + language
	id, err := e.host.OpenDocument(ctx, host.OpenSpec{Language: language, Name: name})
	if err != nil {
		return "", false, err
	}
	e.registry.Remember(hostSnap.ID, language, id)
	return id, true, nil
}

// Link returns the link doc belongs to, as host or subdocument.
func (e *Engine) Link(doc DocumentID) (*Link, bool) {
	if l, ok := e.registry.Get(doc); ok {
		return l, true
	}
	if hostDoc, ok := e.registry.HostOf(doc); ok {
		return e.registry.Get(hostDoc)
	}
	return nil, false
}

// Links returns every live link ordered by host document.
func (e *Engine) Links() []*Link { return e.registry.Values() }

// Close tears down the link doc belongs to and reports whether there was one.
func (e *Engine) Close(ctx context.Context, doc DocumentID, reason Reason) bool {
	l, ok := e.Link(doc)
	if !ok {
		return false
	}
	if reason == "" {
		reason = ReasonClosed
	}
	return l.Close(ctx, reason) == nil
}

// CloseAll tears down every link and returns how many were closed.
func (e *Engine) CloseAll(ctx context.Context) int {
	return e.closeAll(ctx, ReasonClosed)
}

func (e *Engine) closeAll(ctx context.Context, reason Reason) int {
	n := 0
	for _, l := range e.registry.Values() {
		if l.Close(ctx, reason) == nil {
			n++
		}
	}
	return n
}

// Shutdown closes every link and the history database. Later Opens fail
// with ErrClosed.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.opening.Lock()
	defer e.opening.Unlock()
	n := e.closeAll(ctx, ReasonDeactivated)
	engineLog.Infof("shutdown: closed %d links", n)
	if e.history != nil && e.ownsHistory {
		if err := e.history.Close(); err != nil {
			return fmt.Errorf("subdoc: close history: %w", err)
		}
	}
	return nil
}

// Save saves doc. Saving a linked subdocument flushes its link and saves the
// host document instead. It returns the document that was saved.
func (e *Engine) Save(ctx context.Context, doc DocumentID) (DocumentID, error) {
	target := doc
	if hostDoc, ok := e.registry.HostOf(doc); ok {
		if l, ok := e.registry.Get(hostDoc); ok {
			if err := l.Flush(ctx); err != nil {
				return "", fmt.Errorf("subdoc: save: %w", err)
			}
			target = hostDoc
		}
	}
	if err := e.host.SaveDocument(ctx, target); err != nil {
		return "", fmt.Errorf("subdoc: save: %w", err)
	}
	return target, nil
}

func (e *Engine) emit(kind EventKind, l *Link, reason Reason) {
	ev := Event{Kind: kind, Link: l, Reason: reason, At: time.Now()}
	if e.history != nil {
		_, err := e.history.RecordEvent(&store.Event{
			LinkID:   l.id,
			HostDoc:  string(l.host),
			SubDoc:   string(l.Sub()),
			Language: l.language,
			Kind:     kind,
			Reason:   string(reason),
			At:       ev.At,
		})
		if err != nil {
			engineLog.Warningf("recording %s event: %s", kind, err)
		}
	}
	for _, fn := range e.hooks {
		fn(ev)
	}
}
