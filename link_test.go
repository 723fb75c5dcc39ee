package subdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jward/subdoc/internal/text"
)

func TestReason_Terminal(t *testing.T) {
	tests := []struct {
		reason Reason
		want   string
	}{
		{ReasonSourceModified, "Source document modified incompatibly. This virtual document can be closed."},
		{ReasonSyncFailed, "Sync failed. This virtual document can be closed."},
		{ReasonToggle, "Closed via toggle. This virtual document can be closed."},
		{"", "This virtual document can be closed."},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reason.Terminal())
		})
	}
}

func TestReason_Notify(t *testing.T) {
	for _, r := range []Reason{ReasonSourceModified, ReasonSourceClosed, ReasonSyncFailed} {
		assert.True(t, r.notify(), r)
	}
	for _, r := range []Reason{ReasonSubClosed, ReasonToggle, ReasonClosed, ReasonReplaced, ReasonDeactivated} {
		assert.False(t, r.notify(), r)
	}
}

func TestCursorMapping(t *testing.T) {
	rng := text.NewRange(2, 6, 4, 3)

	tests := []struct {
		name string
		host text.Position
		sub  text.Position
	}{
		{"region start", text.Position{Line: 2, Character: 6}, text.Position{}},
		{"first line", text.Position{Line: 2, Character: 9}, text.Position{Character: 3}},
		{"later line keeps column", text.Position{Line: 3, Character: 1}, text.Position{Line: 1, Character: 1}},
		{"last line", text.Position{Line: 4, Character: 2}, text.Position{Line: 2, Character: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sub, toSub(rng, tt.host))
			assert.Equal(t, tt.host, toHost(rng, tt.sub))
		})
	}

	assert.Equal(t, text.Position{}, toSub(rng, text.Position{Line: 1, Character: 40}), "before the region")
	assert.Equal(t, text.Position{}, toSub(rng, text.Position{Line: 2, Character: 2}), "before on the start line")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "activating", Activating.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "disposing", Disposing.String())
	assert.Equal(t, "disposed", Disposed.String())
	assert.Equal(t, "unknown", State(42).String())
}
