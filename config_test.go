package subdoc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.ThrottleDuration()
	require.NoError(t, err)
	assert.Equal(t, DefaultThrottle, d)
	assert.Equal(t, DefaultLanguage, cfg.DefaultLanguage)
	assert.False(t, cfg.ReuseSubdocuments)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
throttle = "250ms"
reuse_subdocuments = true
history = "state/history.db"

[patterns]
markdown = '(<<)(.*?)(>>)'
`))
	require.NoError(t, err)
	d, err := cfg.ThrottleDuration()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
	assert.True(t, cfg.ReuseSubdocuments)
	assert.Equal(t, DefaultLanguage, cfg.DefaultLanguage, "unset keys keep defaults")
	assert.Equal(t, "state/history.db", cfg.HistoryPath())
	assert.Equal(t, map[string]string{"markdown": "(<<)(.*?)(>>)"}, cfg.Patterns)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad toml", `throttle = `},
		{"bad duration", `throttle = "soon"`},
		{"negative duration", `throttle = "-1s"`},
		{"bad pattern", "[patterns]\nsql = '(a)(b)'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(dir, "subdoc.toml")
	require.NoError(t, os.WriteFile(path, []byte("history = \"h.db\"\n[scripts]\npython = \"py.risor\"\n"), 0644))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "h.db"), cfg.HistoryPath())

	// The script file does not exist yet.
	_, err = cfg.Options()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "py.risor"), []byte(`region(0, 0)`), 0644))
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 5)

	require.NoError(t, os.WriteFile(path, []byte(`throttle = "x"`), 0644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, path)
}
