package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jward/subdoc"
	"github.com/jward/subdoc/internal/finder"
	"github.com/jward/subdoc/internal/store"
)

var (
	flagLimit  int
	flagLinkID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent language picks and link events",
	Long:  "Shows recent language picks and link events. With --link, shows every event of one link with its sync counts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return outputError("history", err)
		}
		h, err := readHistory(cfg.HistoryPath(), flagLimit, flagLinkID)
		if err != nil {
			return outputError("history", err)
		}
		return outputResult(CLIResult{Command: "history", Results: h})
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List document languages with a region finder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return outputError("languages", err)
		}
		return outputResult(CLIResult{Command: "languages", Results: listLanguages(cfg)})
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum picks and events to show")
	historyCmd.Flags().StringVar(&flagLinkID, "link", "", "show the events of one link")
}

// readHistory reads up to limit picks and events from an existing history
// database. A non-empty linkID selects that link's events instead.
func readHistory(path string, limit int, linkID string) (CLIHistory, error) {
	if path == "" {
		return CLIHistory{}, errors.New("no history database configured (use --db or history in the config)")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CLIHistory{}, fmt.Errorf("history database not found: %s", path)
	}
	s, err := store.NewStore(path)
	if err != nil {
		return CLIHistory{}, err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return CLIHistory{}, err
	}

	out := CLIHistory{Picks: []CLIPick{}, Events: []CLIEvent{}}
	last, ok, err := s.LastLanguage()
	if err != nil {
		return CLIHistory{}, err
	}
	if ok {
		out.LastLanguage = last
	}
	picks, err := s.RecentPicks(limit)
	if err != nil {
		return CLIHistory{}, err
	}
	for _, p := range picks {
		out.Picks = append(out.Picks, CLIPick{Language: p.Language, PickedAt: p.PickedAt})
	}

	var events []*store.Event
	if linkID != "" {
		events, err = s.EventsForLink(linkID)
		if err != nil {
			return CLIHistory{}, err
		}
		if len(events) == 0 {
			return CLIHistory{}, fmt.Errorf("no events recorded for link %s", linkID)
		}
		syncs := &CLISyncCounts{}
		if syncs.ToHost, err = s.CountEvents(linkID, store.EventSyncedToHost); err != nil {
			return CLIHistory{}, err
		}
		if syncs.ToSub, err = s.CountEvents(linkID, store.EventSyncedToSub); err != nil {
			return CLIHistory{}, err
		}
		out.Syncs = syncs
	} else {
		events, err = s.RecentEvents(limit)
		if err != nil {
			return CLIHistory{}, err
		}
	}
	for _, e := range events {
		out.Events = append(out.Events, CLIEvent{
			ID:       e.ID,
			LinkID:   e.LinkID,
			Kind:     string(e.Kind),
			HostDoc:  e.HostDoc,
			SubDoc:   e.SubDoc,
			Language: e.Language,
			Reason:   e.Reason,
			At:       e.At,
		})
	}
	return out, nil
}

// listLanguages reports the finder used for each language. Scripts override
// the syntax finder and patterns override both, matching the engine.
func listLanguages(cfg *subdoc.Config) []CLILanguage {
	byLang := make(map[string]CLILanguage)
	for _, lang := range finder.SyntaxLanguages() {
		byLang[lang] = CLILanguage{Language: lang, Finder: "syntax"}
	}
	for lang, path := range cfg.Scripts {
		byLang[lang] = CLILanguage{Language: lang, Finder: "script", Source: path}
	}
	for lang, rule := range cfg.Patterns {
		byLang[lang] = CLILanguage{Language: lang, Finder: "pattern", Source: rule}
	}

	out := make([]CLILanguage, 0, len(byLang))
	for _, l := range byLang {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}
