package subdoc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/tliron/commonlog"

	"github.com/jward/subdoc/internal/host"
	"github.com/jward/subdoc/internal/text"
	"github.com/jward/subdoc/internal/tracker"
)

var linkLog = commonlog.GetLogger("subdoc.link")

// State is the lifecycle state of a Link.
type State uint8

const (
	Activating State = iota
	Active
	Disposing
	Disposed
)

func (s State) String() string {
	switch s {
	case Activating:
		return "activating"
	case Active:
		return "active"
	case Disposing:
		return "disposing"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Reason explains why a link was torn down.
type Reason string

const (
	ReasonSourceModified   Reason = "source document modified incompatibly"
	ReasonSourceClosed     Reason = "source closed"
	ReasonSubClosed        Reason = "subdocument closed"
	ReasonSyncFailed       Reason = "sync failed"
	ReasonToggle           Reason = "closed via toggle"
	ReasonClosed           Reason = "closed"
	ReasonReplaced         Reason = "replaced by a new subdocument"
	ReasonDeactivated      Reason = "extension deactivated"
	ReasonActivationFailed Reason = "activation failed"
)

// Terminal is the text left in a reused subdocument after teardown.
func (r Reason) Terminal() string {
	s := string(r)
	if s == "" {
		return "This virtual document can be closed."
	}
	return strings.ToUpper(s[:1]) + s[1:] + ". This virtual document can be closed."
}

// notify reports whether the reason deserves a transient message. Reasons
// the user caused directly do not.
func (r Reason) notify() bool {
	switch r {
	case ReasonSourceModified, ReasonSourceClosed, ReasonSyncFailed:
		return true
	}
	return false
}

type side uint8

const (
	sideHost side = iota
	sideSub
)

func (s side) other() side {
	if s == sideHost {
		return sideSub
	}
	return sideHost
}

func (s side) String() string {
	if s == sideHost {
		return "host"
	}
	return "subdocument"
}

// echo is the tag left by a sync edit so its own change event is
// recognised. It is consumed by the first event on that side.
type echo struct {
	rng  text.Range
	text string
	// after is the tracked range once a host-side echo lands.
	after text.Range
}

func (e *echo) matches(ev host.ChangeEvent) bool {
	return len(ev.Changes) == 1 && ev.Changes[0].Range == e.rng && ev.Changes[0].Text == e.text
}

// Stats counts sync activity on a link.
type Stats struct {
	ToHost int
	ToSub  int
	Echoes int
}

type teardown uint8

const (
	callerTeardown teardown = iota
	eventTeardown
	syncTeardown
)

// Link binds a tracked range in a host document to the whole content of a
// subdocument and keeps the two in sync.
type Link struct {
	id       string
	engine   *Engine
	host     DocumentID
	language string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	toHost *throttle
	toSub  *throttle
	syncMu sync.Mutex

	mu       sync.Mutex
	sub      DocumentID
	fresh    bool
	rng      text.Range
	state    State
	reason   Reason
	cause    error
	primed   bool
	versions [2]int
	echoes   [2]*echo
	// dirty marks a side holding a user edit not yet copied to the other.
	dirty    [2]bool
	stats    Stats
	subs     []host.Subscription
}

func newLink(e *Engine, hostDoc DocumentID, language string, rng text.Range) *Link {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Link{
		id:       ulid.Make().String(),
		engine:   e,
		host:     hostDoc,
		language: language,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		rng:      rng,
	}
	l.toHost = newThrottle(e.interval, func() { l.syncToHost(l.ctx) })
	l.toSub = newThrottle(e.interval, func() { l.syncToSub(l.ctx) })
	return l
}

// ID returns the link's unique id.
func (l *Link) ID() string { return l.id }

// Host returns the host document.
func (l *Link) Host() DocumentID { return l.host }

// Language returns the subdocument language.
func (l *Link) Language() string { return l.language }

// Sub returns the subdocument, empty until activation opens it.
func (l *Link) Sub() DocumentID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub
}

// Range returns the tracked range in the host document.
func (l *Link) Range() Range {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng
}

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Reason returns why the link was torn down, or "" while it is alive.
func (l *Link) Reason() Reason {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

// Err returns the error behind the teardown, if any.
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cause
}

// Done is closed once the link reaches Disposed.
func (l *Link) Done() <-chan struct{} { return l.done }

func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Flush runs owed syncs in both directions now instead of waiting for the
// throttle interval.
func (l *Link) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.State() != Active {
		return ErrClosed
	}
	l.toHost.Flush()
	l.toSub.Flush()
	return nil
}

// Close tears the link down and waits for cleanup. It returns ErrClosed if
// the link was already being torn down.
func (l *Link) Close(ctx context.Context, reason Reason) error {
	if !l.dispose(reason, nil, callerTeardown) {
		select {
		case <-l.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return ErrClosed
	}
	return nil
}

func (l *Link) alive() bool {
	return l.state == Activating || l.state == Active
}

// activate opens or reuses the subdocument, seeds it and shows it. Any
// failure aborts the link and is returned as *HostOperationError.
func (l *Link) activate(ctx context.Context, hostVersion int, cursor Position) error {
	l.syncMu.Lock()
	defer l.syncMu.Unlock()

	h := l.engine.host
	l.mu.Lock()
	l.subs = append(l.subs,
		h.OnDidChangeDocument(l.onChange),
		h.OnDidCloseDocument(l.onClose),
	)
	l.mu.Unlock()

	hostSnap, err := h.Snapshot(l.host)
	if err != nil {
		return l.abort(ctx, "snapshot", err)
	}
	if hostSnap.Version != hostVersion {
		return l.abort(ctx, "snapshot", fmt.Errorf("%w: document changed while opening", ErrUntrackable))
	}
	regionText, err := text.Slice(hostSnap.Text, l.rng)
	if err != nil {
		return l.abort(ctx, "snapshot", err)
	}
	l.mu.Lock()
	l.versions[sideHost] = hostSnap.Version
	l.primed = true
	l.mu.Unlock()

	sub, fresh, err := l.engine.openSubdocument(ctx, hostSnap, l.language)
	if err != nil {
		return l.abort(ctx, "open", err)
	}
	subSnap, err := h.Snapshot(sub)
	if err != nil {
		return l.abort(ctx, "snapshot", err)
	}
	l.mu.Lock()
	l.sub = sub
	l.fresh = fresh
	l.versions[sideSub] = subSnap.Version
	l.mu.Unlock()

	if err := h.ShowDocument(ctx, sub, host.ShowOptions{Beside: true}); err != nil {
		return l.abort(ctx, "show", err)
	}

	if subSnap.Text != regionText {
		full := text.FullRange(subSnap.Text)
		l.mu.Lock()
		l.echoes[sideSub] = &echo{rng: full, text: regionText}
		l.mu.Unlock()
		ok, err := h.Edit(ctx, sub, host.Edit{Range: full, Text: regionText, Version: subSnap.Version})
		if err == nil && !ok {
			err = errors.New("seed edit rejected")
		}
		if err != nil {
			return l.abort(ctx, "edit", err)
		}
	}

	subPos := text.Clamp(regionText, toSub(l.Range(), cursor))
	if err := h.SetCursor(ctx, sub, subPos); err != nil {
		return l.abort(ctx, "cursor", err)
	}
	if err := h.RevealLine(ctx, sub, subPos.Line); err != nil {
		return l.abort(ctx, "reveal", err)
	}

	l.mu.Lock()
	if !l.alive() {
		reason := l.reason
		l.mu.Unlock()
		return &HostOperationError{Op: "activate", Err: fmt.Errorf("%w: %s", ErrClosed, reason)}
	}
	l.state = Active
	rng := l.rng
	l.mu.Unlock()

	linkLog.Infof("link %s active: %s %s -> %s (%s)", l.id, l.host, rng, sub, l.language)
	l.engine.emit(EventOpened, l, "")
	return nil
}

// abort undoes a partial activation. A link already torn down by an event
// during activation is left to that teardown.
func (l *Link) abort(ctx context.Context, op string, err error) error {
	l.mu.Lock()
	if !l.alive() {
		l.mu.Unlock()
		return &HostOperationError{Op: op, Err: err}
	}
	l.state = Disposing
	l.reason = ReasonActivationFailed
	l.cause = err
	l.echoes = [2]*echo{}
	sub, fresh := l.sub, l.fresh
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()

	l.toHost.Stop()
	l.toSub.Stop()
	for _, s := range subs {
		s.Dispose()
	}
	l.engine.registry.deleteLink(l.host, l)
	if sub != "" && fresh {
		l.engine.registry.Forget(sub)
		if h := l.engine.host; isOpen(h, sub) {
			if cerr := h.CloseDocument(ctx, sub); cerr != nil {
				linkLog.Warningf("link %s: closing subdocument after failed activation: %s", l.id, cerr)
			}
		}
	}
	l.finish()
	linkLog.Warningf("link %s: activation failed at %s: %s", l.id, op, err)
	return &HostOperationError{Op: op, Err: err}
}

func isOpen(h Host, doc DocumentID) bool {
	_, err := h.Snapshot(doc)
	return err == nil
}

func (l *Link) finish() {
	l.mu.Lock()
	l.state = Disposed
	l.mu.Unlock()
	l.cancel()
	close(l.done)
}

func (l *Link) onChange(ev host.ChangeEvent) {
	l.mu.Lock()
	if !l.alive() || !l.primed {
		l.mu.Unlock()
		return
	}
	var s side
	switch ev.Document {
	case l.host:
		s = sideHost
	case l.sub:
		s = sideSub
	default:
		l.mu.Unlock()
		return
	}
	if ev.Version <= l.versions[s] {
		l.mu.Unlock()
		linkLog.Debugf("link %s: stale %s event v%d", l.id, s, ev.Version)
		return
	}
	if s == sideHost && ev.Version != l.versions[s]+1 {
		last := l.versions[s]
		l.mu.Unlock()
		err := fmt.Errorf("%w: host event v%d arrived after v%d", ErrUntrackable, ev.Version, last)
		linkLog.Infof("link %s: %s", l.id, err)
		l.dispose(ReasonSourceModified, err, eventTeardown)
		return
	}
	l.versions[s] = ev.Version

	if e := l.echoes[s]; e != nil {
		l.echoes[s] = nil
		if e.matches(ev) {
			if s == sideHost {
				l.rng = e.after
			}
			l.stats.Echoes++
			l.mu.Unlock()
			return
		}
		linkLog.Debugf("link %s: %s event did not match pending echo", l.id, s)
	}

	if s == sideSub {
		conflict := l.dirty[sideHost]
		l.dirty[sideSub] = true
		l.mu.Unlock()
		if conflict {
			l.conflict()
			return
		}
		l.toHost.Request()
		return
	}

	edits := make([]tracker.Edit, len(ev.Changes))
	for i, c := range ev.Changes {
		edits[i] = tracker.Edit{Span: c.Range, Text: c.Text}
	}
	rng, inside, err := tracker.ApplyAll(edits, l.rng)
	if err != nil {
		l.mu.Unlock()
		linkLog.Infof("link %s: %s", l.id, err)
		l.dispose(ReasonSourceModified, err, eventTeardown)
		return
	}
	l.rng = rng
	conflict := inside && l.dirty[sideSub]
	if inside {
		l.dirty[sideHost] = true
	}
	l.mu.Unlock()
	if conflict {
		l.conflict()
		return
	}
	if inside {
		l.toSub.Request()
	}
}

// conflict tears the link down when both sides were edited since the last
// sync. Copying either side over the other would drop the other edit.
func (l *Link) conflict() {
	err := fmt.Errorf("%w: host region and subdocument both edited before sync", ErrSyncFailed)
	linkLog.Warningf("link %s: %s", l.id, err)
	l.dispose(ReasonSyncFailed, err, eventTeardown)
}

func (l *Link) onClose(doc DocumentID) {
	l.mu.Lock()
	sub := l.sub
	l.mu.Unlock()
	switch doc {
	case l.host:
		l.engine.registry.Forget(l.host)
		l.dispose(ReasonSourceClosed, nil, eventTeardown)
	case sub:
		l.engine.registry.Forget(sub)
		l.dispose(ReasonSubClosed, nil, eventTeardown)
	}
}

// prepare snapshots both documents for a sync and tags the echo the sync
// edit will produce on target. It retries while either document moves
// under it.
func (l *Link) prepare(target side) (host.Edit, bool, error) {
	h := l.engine.host
	for attempt := 0; attempt < 3; attempt++ {
		l.mu.Lock()
		// A target with its own unsynced edit is copied the other way.
		if l.state != Active || l.dirty[target] {
			l.mu.Unlock()
			return host.Edit{}, false, nil
		}
		rng, sub := l.rng, l.sub
		l.mu.Unlock()

		hostSnap, err := h.Snapshot(l.host)
		if err != nil {
			return host.Edit{}, false, err
		}
		subSnap, err := h.Snapshot(sub)
		if err != nil {
			return host.Edit{}, false, err
		}
		regionText, err := text.Slice(hostSnap.Text, rng)
		if err != nil {
			return host.Edit{}, false, err
		}
		if regionText == subSnap.Text {
			l.mu.Lock()
			if l.rng == rng && l.versions[sideHost] == hostSnap.Version && l.versions[sideSub] == subSnap.Version {
				l.dirty = [2]bool{}
			}
			l.mu.Unlock()
			return host.Edit{}, false, nil
		}

		var edit host.Edit
		var tag *echo
		if target == sideHost {
			edit = host.Edit{Range: rng, Text: subSnap.Text, Version: hostSnap.Version}
			tag = &echo{rng: rng, text: subSnap.Text, after: tracker.Replace(rng, subSnap.Text)}
		} else {
			full := text.FullRange(subSnap.Text)
			edit = host.Edit{Range: full, Text: regionText, Version: subSnap.Version}
			tag = &echo{rng: full, text: regionText}
		}

		l.mu.Lock()
		if l.state != Active || l.dirty[target] {
			l.mu.Unlock()
			return host.Edit{}, false, nil
		}
		if l.rng != rng || l.versions[sideHost] != hostSnap.Version || l.versions[sideSub] != subSnap.Version {
			l.mu.Unlock()
			continue
		}
		l.echoes[target] = tag
		l.dirty[target.other()] = false
		l.mu.Unlock()
		return edit, true, nil
	}
	return host.Edit{}, false, errors.New("documents kept changing")
}

func (l *Link) syncToHost(ctx context.Context) {
	l.sync(ctx, sideHost)
}

func (l *Link) syncToSub(ctx context.Context) {
	l.sync(ctx, sideSub)
}

// sync copies one side into the other. Both directions share syncMu so they
// never run at the same time.
func (l *Link) sync(ctx context.Context, target side) {
	l.syncMu.Lock()
	defer l.syncMu.Unlock()

	edit, ok, err := l.prepare(target)
	if err != nil {
		l.dispose(ReasonSyncFailed, fmt.Errorf("%w: %s: %v", ErrSyncFailed, target, err), syncTeardown)
		return
	}
	if !ok {
		return
	}

	doc := l.host
	if target == sideSub {
		doc = l.Sub()
	}
	applied, err := l.engine.host.Edit(ctx, doc, edit)
	if err == nil && !applied {
		err = errors.New("edit rejected")
	}
	if err != nil {
		l.mu.Lock()
		l.echoes[target] = nil
		l.mu.Unlock()
		linkLog.Warningf("link %s: sync to %s failed: %s", l.id, target, err)
		l.dispose(ReasonSyncFailed, fmt.Errorf("%w: %s: %v", ErrSyncFailed, target, err), syncTeardown)
		return
	}

	l.mu.Lock()
	if target == sideHost {
		l.stats.ToHost++
	} else {
		l.stats.ToSub++
	}
	l.mu.Unlock()
	linkLog.Debugf("link %s: synced %d bytes to %s", l.id, len(edit.Text), target)
	if target == sideHost {
		l.engine.emit(EventSyncedToHost, l, "")
	} else {
		l.engine.emit(EventSyncedToSub, l, "")
	}
}

// dispose moves the link to Disposing. Listeners are released and the
// registry entry removed before any cleanup touches an editor. It reports
// false if the link was already being torn down.
func (l *Link) dispose(reason Reason, cause error, mode teardown) bool {
	l.mu.Lock()
	if !l.alive() {
		l.mu.Unlock()
		return false
	}
	l.state = Disposing
	l.reason = reason
	l.cause = cause
	l.echoes = [2]*echo{}
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()

	l.toHost.Stop()
	l.toSub.Stop()
	for _, s := range subs {
		s.Dispose()
	}
	l.engine.registry.deleteLink(l.host, l)
	linkLog.Infof("link %s disposing: %s", l.id, reason)
	l.engine.emit(EventClosed, l, reason)

	run := func() {
		l.cleanup(context.Background(), reason)
		l.finish()
	}
	switch mode {
	case eventTeardown:
		go func() {
			l.syncMu.Lock()
			defer l.syncMu.Unlock()
			run()
		}()
	case syncTeardown:
		run()
	default:
		l.syncMu.Lock()
		defer l.syncMu.Unlock()
		run()
	}
	return true
}

// cleanup restores the editors after teardown. Failures are logged and
// swallowed.
func (l *Link) cleanup(ctx context.Context, reason Reason) {
	h := l.engine.host
	l.mu.Lock()
	sub, rng := l.sub, l.rng
	l.mu.Unlock()
	if sub == "" {
		return
	}

	active, cursor, focused := h.ActiveEditor()
	focused = focused && active == sub

	if snap, err := h.Snapshot(sub); err == nil {
		if l.engine.reuse {
			l.replaceAll(ctx, snap, reason.Terminal())
		} else {
			l.replaceAll(ctx, snap, "")
			if err := h.CloseDocument(ctx, sub); err != nil {
				linkLog.Warningf("link %s: closing subdocument: %s", l.id, err)
			}
		}
	}

	if hostSnap, err := h.Snapshot(l.host); err == nil && focused {
		if err := h.ShowDocument(ctx, l.host, host.ShowOptions{}); err != nil {
			linkLog.Warningf("link %s: refocusing host: %s", l.id, err)
		} else if err := h.SetCursor(ctx, l.host, text.Clamp(hostSnap.Text, toHost(rng, cursor))); err != nil {
			linkLog.Warningf("link %s: restoring cursor: %s", l.id, err)
		}
	}

	if reason.notify() {
		if err := h.ShowMessage(ctx, host.LevelInfo, reason.Terminal()); err != nil {
			linkLog.Warningf("link %s: showing message: %s", l.id, err)
		}
	}
}

func (l *Link) replaceAll(ctx context.Context, snap Snapshot, content string) {
	if snap.Text == content {
		return
	}
	ok, err := l.engine.host.Edit(ctx, snap.ID, host.Edit{
		Range:   text.FullRange(snap.Text),
		Text:    content,
		Version: snap.Version,
	})
	if err == nil && !ok {
		err = errors.New("edit rejected")
	}
	if err != nil {
		linkLog.Warningf("link %s: resetting subdocument: %s", l.id, err)
	}
}

// toSub maps a host position into subdocument coordinates for a region
// starting at rng.Start. Positions before the region map to the origin.
func toSub(rng text.Range, p text.Position) text.Position {
	if p.Before(rng.Start) {
		return text.Position{}
	}
	out := text.Position{Line: p.Line - rng.Start.Line, Character: p.Character}
	if p.Line == rng.Start.Line {
		out.Character -= rng.Start.Character
	}
	return out
}

// toHost maps a subdocument position back into the host document.
func toHost(rng text.Range, p text.Position) text.Position {
	out := text.Position{Line: rng.Start.Line + p.Line, Character: p.Character}
	if p.Line == 0 {
		out.Character += rng.Start.Character
	}
	return out
}
