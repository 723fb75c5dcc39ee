package subdoc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jward/subdoc/internal/finder"
)

// DefaultThrottle is the minimum interval between two syncs in one direction.
const DefaultThrottle = 100 * time.Millisecond

// DefaultLanguage heads the language picker until the user picks another.
const DefaultLanguage = "html"

// Config is the TOML configuration file.
//
//	throttle = "100ms"
//	default_language = "html"
//	reuse_subdocuments = false
//	history = ".subdoc/history.db"
//
//	[patterns]
//	markdown = '(```\w*\r?\n)([\s\S]*?)(\r?\n```)'
//
//	[scripts]
//	python = "scripts/python.risor"
type Config struct {
	Throttle          string            `toml:"throttle"`
	DefaultLanguage   string            `toml:"default_language"`
	ReuseSubdocuments bool              `toml:"reuse_subdocuments"`
	History           string            `toml:"history"`
	Patterns          map[string]string `toml:"patterns"`
	Scripts           map[string]string `toml:"scripts"`

	// dir resolves relative History and Scripts paths. Empty means the
	// working directory.
	dir string
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Throttle:        DefaultThrottle.String(),
		DefaultLanguage: DefaultLanguage,
	}
}

// ParseConfig decodes TOML data on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("subdoc: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads a TOML file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("subdoc: reading config file %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, path)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// ThrottleDuration parses Throttle. An empty value means DefaultThrottle.
func (c *Config) ThrottleDuration() (time.Duration, error) {
	if c.Throttle == "" {
		return DefaultThrottle, nil
	}
	d, err := time.ParseDuration(c.Throttle)
	if err != nil {
		return 0, fmt.Errorf("subdoc: config throttle: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("subdoc: config throttle: negative duration %s", d)
	}
	return d, nil
}

// Validate checks durations and compiles every pattern.
func (c *Config) Validate() error {
	if _, err := c.ThrottleDuration(); err != nil {
		return err
	}
	for _, lang := range sortedKeys(c.Patterns) {
		if _, err := finder.NewPattern(c.Patterns[lang]); err != nil {
			return fmt.Errorf("subdoc: config pattern for %s: %w", lang, err)
		}
	}
	return nil
}

// HistoryPath returns History resolved against the config file's directory.
func (c *Config) HistoryPath() string {
	return c.resolve(c.History)
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// Options converts the configuration to Engine options. Scripts are loaded
// from disk here; patterns take precedence over scripts for the same
// language.
func (c *Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	d, _ := c.ThrottleDuration()
	opts := []Option{
		WithThrottle(d),
		WithReuse(c.ReuseSubdocuments),
	}
	if c.DefaultLanguage != "" {
		opts = append(opts, WithDefaultLanguage(c.DefaultLanguage))
	}
	if c.History != "" {
		opts = append(opts, WithHistory(c.HistoryPath()))
	}
	for _, lang := range sortedKeys(c.Scripts) {
		s, err := finder.LoadScript(c.resolve(c.Scripts[lang]), lang)
		if err != nil {
			return nil, fmt.Errorf("subdoc: config script for %s: %w", lang, err)
		}
		opts = append(opts, WithFinder(lang, s))
	}
	if len(c.Patterns) > 0 {
		opts = append(opts, WithPatterns(c.Patterns))
	}
	return opts, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
