package subdoc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/subdoc/internal/memhost"
	"github.com/jward/subdoc/internal/text"
)

// TestIntegration_ConcurrentLinksConverge types into many subdocuments at
// once with a real throttle and checks every host region ends up equal to
// its subdocument.
func TestIntegration_ConcurrentLinksConverge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	h := memhost.New()
	e := newTestEngine(t, h, WithThrottle(2*time.Millisecond))

	const docs = 8
	const keystrokes = 25
	links := make([]*Link, docs)
	for i := range links {
		src := fmt.Sprintf("// file %d\nconst t = html`<b>%d</b>`;\n", i, i)
		doc := h.AddDocument(fmt.Sprintf("f%d.js", i), "javascript", src)
		links[i] = openAt(t, e, doc, posOf(t, src, "<b>"))
	}

	var wg sync.WaitGroup
	for _, l := range links {
		wg.Add(1)
		go func(l *Link) {
			defer wg.Done()
			for k := 0; k < keystrokes; k++ {
				snap, err := h.Snapshot(l.Sub())
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, h.Insert(l.Sub(), text.Extent(snap.Text), "."))
				time.Sleep(time.Duration(k%3) * time.Millisecond)
			}
		}(l)
	}
	wg.Wait()

	for _, l := range links {
		require.NoError(t, l.Flush(ctx))
		require.Equal(t, Active, l.State(), "link %s: %s", l.ID(), l.Err())

		region, err := text.Slice(h.Text(l.Host()), l.Range())
		require.NoError(t, err)
		assert.Equal(t, h.Text(l.Sub()), region)
		assert.Len(t, region, len("<b>0</b>")+keystrokes)
		assert.Less(t, l.Stats().ToHost, keystrokes+1)
	}
	assert.Equal(t, docs, len(e.Links()))
	assert.Equal(t, 2*docs, h.Listeners())
}
