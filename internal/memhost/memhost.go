// Package memhost is an in-memory editor host. It backs the CLI and the
// engine tests: documents live in memory, events are delivered
// synchronously, and picker answers and edit failures can be scripted.
package memhost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jward/subdoc/internal/host"
	"github.com/jward/subdoc/internal/text"
)

// ErrUnknownDocument is returned for documents that are not open.
var ErrUnknownDocument = errors.New("memhost: unknown document")

// Message is a user-visible message shown through ShowMessage.
type Message struct {
	Level host.Level
	Text  string
}

type document struct {
	id       host.DocumentID
	name     string
	language string
	text     string
	version  int
	cursor   text.Position
	revealed int
	edits    int
	saves    int

	pending    []host.ChangeEvent
	delivering bool
}

type listener[T any] struct {
	id int
	fn func(T)
}

// Host implements host.Host in memory.
type Host struct {
	mu sync.Mutex

	docs   map[host.DocumentID]*document
	nextID int
	active host.DocumentID

	changeSubs []listener[host.ChangeEvent]
	closeSubs  []listener[host.DocumentID]
	nextSub    int

	languages []string
	picks     []pickAnswer
	pickCalls [][]string
	messages  []Message
	failures  map[host.DocumentID]error

	settle time.Duration
}

type pickAnswer struct {
	value string
	ok    bool
}

// errRejected marks an injected rejection as opposed to an injected error.
var errRejected = errors.New("rejected")

// Option configures a Host.
type Option func(*Host)

// WithSettleDelay sets the pause applied after showing or closing an editor.
// Real editor platforms need one to let focus changes land before the next
// command; the in-memory host defaults to none.
func WithSettleDelay(d time.Duration) Option {
	return func(h *Host) {
		h.settle = d
	}
}

// WithLanguages sets the language ids returned by Languages.
func WithLanguages(languages ...string) Option {
	return func(h *Host) {
		h.languages = append([]string(nil), languages...)
	}
}

// New creates an empty Host.
func New(opts ...Option) *Host {
	h := &Host{
		docs:      make(map[host.DocumentID]*document),
		failures:  make(map[host.DocumentID]error),
		languages: []string{"plaintext", "html", "css", "sql", "markdown", "javascript", "typescript"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ host.Host = (*Host)(nil)

// AddDocument opens a document with the given content and focuses it.
func (h *Host) AddDocument(name, language, content string) host.DocumentID {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := h.newDocumentLocked(name, language)
	d.text = content
	h.active = d.id
	return d.id
}

func (h *Host) newDocumentLocked(name, language string) *document {
	h.nextID++
	id := host.DocumentID(fmt.Sprintf("mem:%d", h.nextID))
	if name == "" {
		name = fmt.Sprintf("Untitled-%d", h.nextID)
	}
	d := &document{id: id, name: name, language: language, version: 1}
	h.docs[id] = d
	return d
}

func (h *Host) docLocked(id host.DocumentID) (*document, error) {
	d, ok := h.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, id)
	}
	return d, nil
}

// Snapshot implements host.Host.
func (h *Host) Snapshot(id host.DocumentID) (host.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, err := h.docLocked(id)
	if err != nil {
		return host.Snapshot{}, err
	}
	return host.Snapshot{ID: d.id, Name: d.name, Language: d.language, Text: d.text, Version: d.version}, nil
}

// OpenDocument implements host.Host.
func (h *Host) OpenDocument(ctx context.Context, spec host.OpenSpec) (host.DocumentID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if spec.Name != "" {
		for _, d := range h.docs {
			if d.name == spec.Name {
				return d.id, nil
			}
		}
	}
	return h.newDocumentLocked(spec.Name, spec.Language).id, nil
}

// ShowDocument implements host.Host.
func (h *Host) ShowDocument(ctx context.Context, id host.DocumentID, opts host.ShowOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	if _, err := h.docLocked(id); err != nil {
		h.mu.Unlock()
		return err
	}
	if !opts.PreserveFocus {
		h.active = id
	}
	h.mu.Unlock()
	h.pause()
	return nil
}

// Edit implements host.Host. An edit against a stale version or an invalid
// range is rejected.
func (h *Host) Edit(ctx context.Context, id host.DocumentID, e host.Edit) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	h.mu.Lock()
	d, err := h.docLocked(id)
	if err != nil {
		h.mu.Unlock()
		return false, err
	}
	if failure, ok := h.failures[id]; ok {
		delete(h.failures, id)
		h.mu.Unlock()
		if errors.Is(failure, errRejected) {
			return false, nil
		}
		return false, failure
	}
	if e.Version != d.version {
		h.mu.Unlock()
		return false, nil
	}
	ev, err := h.applyLocked(d, []host.Change{{Range: e.Range, Text: e.Text}})
	if err != nil {
		h.mu.Unlock()
		return false, nil
	}
	d.edits++
	h.publishLocked(d, ev)
	return true, nil
}

// publishLocked queues ev and, unless another call is already delivering
// this document's events, delivers the queue in version order. It is called
// with h.mu held and returns with it released. An edit made from inside a
// listener is delivered after that listener returns.
func (h *Host) publishLocked(d *document, ev host.ChangeEvent) {
	d.pending = append(d.pending, ev)
	if d.delivering {
		h.mu.Unlock()
		return
	}
	d.delivering = true
	for len(d.pending) > 0 {
		next := d.pending[0]
		d.pending = d.pending[1:]
		subs := append([]listener[host.ChangeEvent](nil), h.changeSubs...)
		h.mu.Unlock()
		for _, s := range subs {
			s.fn(next)
		}
		h.mu.Lock()
	}
	d.delivering = false
	h.mu.Unlock()
}

// applyLocked applies changes in order and builds the resulting event.
func (h *Host) applyLocked(d *document, changes []host.Change) (host.ChangeEvent, error) {
	content := d.text
	for _, c := range changes {
		var err error
		content, err = text.Replace(content, c.Range, c.Text)
		if err != nil {
			return host.ChangeEvent{}, err
		}
	}
	d.text = content
	d.version++
	d.cursor = text.Clamp(d.text, d.cursor)
	return host.ChangeEvent{
		Document: d.id,
		Version:  d.version,
		Changes:  append([]host.Change(nil), changes...),
	}, nil
}

// Apply performs a user edit made of one or more changes, each relative to
// the document produced by the previous one, and reports it as one event.
func (h *Host) Apply(id host.DocumentID, changes ...host.Change) error {
	h.mu.Lock()
	d, err := h.docLocked(id)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	ev, err := h.applyLocked(d, changes)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.publishLocked(d, ev)
	return nil
}

// Replace performs a user edit replacing r with s.
func (h *Host) Replace(id host.DocumentID, r text.Range, s string) error {
	return h.Apply(id, host.Change{Range: r, Text: s})
}

// Insert performs a user edit inserting s at pos.
func (h *Host) Insert(id host.DocumentID, pos text.Position, s string) error {
	return h.Replace(id, text.Range{Start: pos, End: pos}, s)
}

// SetText performs a user edit replacing the whole document.
func (h *Host) SetText(id host.DocumentID, s string) error {
	h.mu.Lock()
	d, err := h.docLocked(id)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	full := text.FullRange(d.text)
	h.mu.Unlock()
	return h.Replace(id, full, s)
}

// CloseDocument implements host.Host.
func (h *Host) CloseDocument(ctx context.Context, id host.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	if _, err := h.docLocked(id); err != nil {
		h.mu.Unlock()
		return err
	}
	delete(h.docs, id)
	delete(h.failures, id)
	if h.active == id {
		h.active = ""
	}
	subs := append([]listener[host.DocumentID](nil), h.closeSubs...)
	h.mu.Unlock()

	h.pause()
	for _, s := range subs {
		s.fn(id)
	}
	return nil
}

// SaveDocument implements host.Host.
func (h *Host) SaveDocument(ctx context.Context, id host.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	d, err := h.docLocked(id)
	if err != nil {
		return err
	}
	d.saves++
	return nil
}

// OnDidChangeDocument implements host.Host.
func (h *Host) OnDidChangeDocument(fn func(host.ChangeEvent)) host.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	h.changeSubs = append(h.changeSubs, listener[host.ChangeEvent]{id: id, fn: fn})
	return host.SubscriptionFunc(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.changeSubs = removeListener(h.changeSubs, id)
	})
}

// OnDidCloseDocument implements host.Host.
func (h *Host) OnDidCloseDocument(fn func(host.DocumentID)) host.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	h.closeSubs = append(h.closeSubs, listener[host.DocumentID]{id: id, fn: fn})
	return host.SubscriptionFunc(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.closeSubs = removeListener(h.closeSubs, id)
	})
}

func removeListener[T any](subs []listener[T], id int) []listener[T] {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Languages implements host.Host.
func (h *Host) Languages(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.languages...), nil
}

// Pick implements host.Host by returning the next queued answer. With no
// queued answer the pick is cancelled.
func (h *Host) Pick(ctx context.Context, options []string, placeholder string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pickCalls = append(h.pickCalls, append([]string(nil), options...))
	if len(h.picks) == 0 {
		return "", false, nil
	}
	a := h.picks[0]
	h.picks = h.picks[1:]
	return a.value, a.ok, nil
}

// QueuePick queues the answer for the next Pick.
func (h *Host) QueuePick(value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.picks = append(h.picks, pickAnswer{value: value, ok: true})
}

// PickCalls returns the option lists offered by every Pick so far.
func (h *Host) PickCalls() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]string(nil), h.pickCalls...)
}

// ShowMessage implements host.Host.
func (h *Host) ShowMessage(ctx context.Context, level host.Level, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{Level: level, Text: message})
	return nil
}

// Messages returns every message shown so far.
func (h *Host) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.messages...)
}

// ActiveEditor implements host.Host.
func (h *Host) ActiveEditor() (host.DocumentID, text.Position, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.docs[h.active]
	if !ok {
		return "", text.Position{}, false
	}
	return d.id, d.cursor, true
}

// Focus makes id the active editor with the cursor at pos.
func (h *Host) Focus(id host.DocumentID, pos text.Position) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, err := h.docLocked(id)
	if err != nil {
		return err
	}
	h.active = id
	d.cursor = text.Clamp(d.text, pos)
	return nil
}

// SetCursor implements host.Host.
func (h *Host) SetCursor(ctx context.Context, id host.DocumentID, pos text.Position) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, err := h.docLocked(id)
	if err != nil {
		return err
	}
	if _, err := text.OffsetAt(d.text, pos); err != nil {
		return err
	}
	d.cursor = pos
	return nil
}

// RevealLine implements host.Host.
func (h *Host) RevealLine(ctx context.Context, id host.DocumentID, line int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, err := h.docLocked(id)
	if err != nil {
		return err
	}
	d.revealed = line
	return nil
}

// FailNextEdit makes the next Edit on id report a rejection.
func (h *Host) FailNextEdit(id host.DocumentID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[id] = errRejected
}

// ErrorNextEdit makes the next Edit on id return err.
func (h *Host) ErrorNextEdit(id host.DocumentID, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[id] = err
}

// Text returns the content of id, or "" if it is not open.
func (h *Host) Text(id host.DocumentID) string {
	s, _ := h.Snapshot(id)
	return s.Text
}

// IsOpen reports whether id is open.
func (h *Host) IsOpen(id host.DocumentID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.docs[id]
	return ok
}

// Edits returns how many Edit calls were applied to id.
func (h *Host) Edits(id host.DocumentID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.docs[id]; ok {
		return d.edits
	}
	return 0
}

// Saves returns how many times id was saved.
func (h *Host) Saves(id host.DocumentID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.docs[id]; ok {
		return d.saves
	}
	return 0
}

// Cursor returns the cursor of id.
func (h *Host) Cursor(id host.DocumentID) text.Position {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.docs[id]; ok {
		return d.cursor
	}
	return text.Position{}
}

// Revealed returns the last line revealed in id.
func (h *Host) Revealed(id host.DocumentID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.docs[id]; ok {
		return d.revealed
	}
	return 0
}

// Listeners returns the number of registered change and close listeners.
func (h *Host) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.changeSubs) + len(h.closeSubs)
}

func (h *Host) pause() {
	if h.settle > 0 {
		time.Sleep(h.settle)
	}
}
