package memhost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jward/subdoc/internal/host"
	"github.com/jward/subdoc/internal/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdit_AppliesAndNotifies(t *testing.T) {
	t.Parallel()
	h := New()
	ctx := context.Background()
	id := h.AddDocument("a.ts", "typescript", "hello world")

	var events []host.ChangeEvent
	sub := h.OnDidChangeDocument(func(ev host.ChangeEvent) { events = append(events, ev) })
	defer sub.Dispose()

	ok, err := h.Edit(ctx, id, host.Edit{Range: text.NewRange(0, 0, 0, 5), Text: "howdy", Version: 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "howdy world", h.Text(id))
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Version)
	assert.Equal(t, []host.Change{{Range: text.NewRange(0, 0, 0, 5), Text: "howdy"}}, events[0].Changes)
	assert.Equal(t, 1, h.Edits(id))
}

func TestEdit_StaleVersionRejected(t *testing.T) {
	t.Parallel()
	h := New()
	id := h.AddDocument("a.ts", "typescript", "abc")
	require.NoError(t, h.Insert(id, text.Position{}, "x"))

	ok, err := h.Edit(context.Background(), id, host.Edit{Range: text.NewRange(0, 0, 0, 1), Text: "y", Version: 1})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "xabc", h.Text(id))
}

func TestEdit_InvalidRangeRejected(t *testing.T) {
	t.Parallel()
	h := New()
	id := h.AddDocument("a.ts", "typescript", "abc")

	ok, err := h.Edit(context.Background(), id, host.Edit{Range: text.NewRange(3, 0, 3, 1), Text: "y", Version: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEdit_JoinedLineBreakRejected(t *testing.T) {
	t.Parallel()
	h := New()
	id := h.AddDocument("a.txt", "plaintext", "a\rb")

	ok, err := h.Edit(context.Background(), id, host.Edit{Range: text.NewRange(1, 0, 1, 0), Text: "\n", Version: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	err = h.Insert(id, text.Position{Line: 1}, "\n")
	require.ErrorIs(t, err, text.ErrJoinsLineBreak)
	assert.Equal(t, "a\rb", h.Text(id))
	snap, err := h.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)
}

func TestChangeEvents_DeliveredInVersionOrder(t *testing.T) {
	t.Parallel()
	h := New()
	id := h.AddDocument("a.txt", "plaintext", "")

	var mu sync.Mutex
	var versions []int
	sub := h.OnDidChangeDocument(func(ev host.ChangeEvent) {
		mu.Lock()
		versions = append(versions, ev.Version)
		mu.Unlock()
	})
	defer sub.Dispose()

	const writers = 8
	const each = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				assert.NoError(t, h.Insert(id, text.Position{}, "x"))
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(versions) == writers*each
	}, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for i, v := range versions {
		assert.Equal(t, i+2, v)
	}
}

func TestListenerEdit_DeliveredAfterListenerReturns(t *testing.T) {
	t.Parallel()
	h := New()
	id := h.AddDocument("a.txt", "plaintext", "abc")

	var order []int
	sub := h.OnDidChangeDocument(func(ev host.ChangeEvent) {
		order = append(order, ev.Version)
		if ev.Version == 2 {
			require.NoError(t, h.Insert(id, text.Position{}, "y"))
			order = append(order, -1)
		}
	})
	defer sub.Dispose()

	require.NoError(t, h.Insert(id, text.Position{}, "x"))
	assert.Equal(t, []int{2, -1, 3}, order)
	assert.Equal(t, "yxabc", h.Text(id))
}

func TestEdit_InjectedFailures(t *testing.T) {
	t.Parallel()
	h := New()
	ctx := context.Background()
	id := h.AddDocument("a.ts", "typescript", "abc")

	h.FailNextEdit(id)
	ok, err := h.Edit(ctx, id, host.Edit{Range: text.NewRange(0, 0, 0, 0), Text: "y", Version: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("boom")
	h.ErrorNextEdit(id, boom)
	_, err = h.Edit(ctx, id, host.Edit{Range: text.NewRange(0, 0, 0, 0), Text: "y", Version: 1})
	require.ErrorIs(t, err, boom)

	ok, err = h.Edit(ctx, id, host.Edit{Range: text.NewRange(0, 0, 0, 0), Text: "y", Version: 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApply_MultipleChangesOneEvent(t *testing.T) {
	t.Parallel()
	h := New()
	id := h.AddDocument("a.ts", "typescript", "one\ntwo")

	var got []host.ChangeEvent
	h.OnDidChangeDocument(func(ev host.ChangeEvent) { got = append(got, ev) })

	require.NoError(t, h.Apply(id,
		host.Change{Range: text.NewRange(1, 0, 1, 3), Text: "2"},
		host.Change{Range: text.NewRange(0, 0, 0, 3), Text: "1"},
	))
	assert.Equal(t, "1\n2", h.Text(id))
	require.Len(t, got, 1)
	assert.Len(t, got[0].Changes, 2)
}

func TestListenerMayDisposeItselfAndCallBack(t *testing.T) {
	t.Parallel()
	h := New()
	id := h.AddDocument("a.ts", "typescript", "abc")

	var sub host.Subscription
	calls := 0
	sub = h.OnDidChangeDocument(func(ev host.ChangeEvent) {
		calls++
		_, err := h.Snapshot(ev.Document)
		require.NoError(t, err)
		sub.Dispose()
	})
	require.NoError(t, h.Insert(id, text.Position{}, "x"))
	require.NoError(t, h.Insert(id, text.Position{}, "y"))
	assert.Equal(t, 1, calls)
	assert.Zero(t, h.Listeners())
}

func TestOpenDocument_ReusesByName(t *testing.T) {
	t.Parallel()
	h := New()
	ctx := context.Background()

	a, err := h.OpenDocument(ctx, host.OpenSpec{Language: "html", Name: "x.virtual.html"})
	require.NoError(t, err)
	b, err := h.OpenDocument(ctx, host.OpenSpec{Language: "html", Name: "x.virtual.html"})
	require.NoError(t, err)
	c, err := h.OpenDocument(ctx, host.OpenSpec{Language: "html"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCloseDocument_Notifies(t *testing.T) {
	t.Parallel()
	h := New()
	ctx := context.Background()
	id := h.AddDocument("a.ts", "typescript", "abc")

	var closed []host.DocumentID
	h.OnDidCloseDocument(func(doc host.DocumentID) { closed = append(closed, doc) })

	require.NoError(t, h.CloseDocument(ctx, id))
	assert.Equal(t, []host.DocumentID{id}, closed)
	assert.False(t, h.IsOpen(id))
	_, _, ok := h.ActiveEditor()
	assert.False(t, ok)
	require.ErrorIs(t, h.CloseDocument(ctx, id), ErrUnknownDocument)
}

func TestShowDocument_Focus(t *testing.T) {
	t.Parallel()
	h := New()
	ctx := context.Background()
	a := h.AddDocument("a.ts", "typescript", "abc")
	b := h.AddDocument("b.ts", "typescript", "def")

	require.NoError(t, h.ShowDocument(ctx, a, host.ShowOptions{PreserveFocus: true}))
	active, _, _ := h.ActiveEditor()
	assert.Equal(t, b, active)

	require.NoError(t, h.ShowDocument(ctx, a, host.ShowOptions{}))
	active, _, _ = h.ActiveEditor()
	assert.Equal(t, a, active)
}

func TestPick(t *testing.T) {
	t.Parallel()
	h := New()
	ctx := context.Background()

	h.QueuePick("css")
	got, ok, err := h.Pick(ctx, []string{"html", "css"}, "Open in Language Mode")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "css", got)

	_, ok, err = h.Pick(ctx, []string{"html"}, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, [][]string{{"html", "css"}, {"html"}}, h.PickCalls())
}

func TestCursorAndReveal(t *testing.T) {
	t.Parallel()
	h := New()
	ctx := context.Background()
	id := h.AddDocument("a.ts", "typescript", "ab\ncd")

	require.NoError(t, h.SetCursor(ctx, id, text.Position{Line: 1, Character: 1}))
	assert.Equal(t, text.Position{Line: 1, Character: 1}, h.Cursor(id))
	require.Error(t, h.SetCursor(ctx, id, text.Position{Line: 4}))

	require.NoError(t, h.RevealLine(ctx, id, 1))
	assert.Equal(t, 1, h.Revealed(id))

	require.NoError(t, h.SetText(id, "x"))
	assert.Equal(t, text.Position{Line: 0, Character: 1}, h.Cursor(id))
}
