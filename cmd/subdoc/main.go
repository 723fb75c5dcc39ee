package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/jward/subdoc"
)

var (
	flagConfig  string
	flagDB      string
	flagFormat  string
	flagVerbose int
	flagLogFile string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "subdoc",
	Short:         "Edit embedded regions as separate documents",
	Long:          "Subdoc locates embedded-language regions (template literals, raw strings, configured patterns) and round-trips edits through a linked subdocument.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configureLogging()
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "TOML config file (default: .subdoc/config.toml when present)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "history database path (overrides the config's history)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(spliceCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(historyCmd)
}

func configureLogging() {
	if flagVerbose == 0 {
		return
	}
	var path *string
	if flagLogFile != "" {
		path = &flagLogFile
	}
	commonlog.Configure(flagVerbose, path)
}

// loadConfig reads --config, or .subdoc/config.toml in the working
// directory when the flag is empty.
func loadConfig() (*subdoc.Config, error) {
	path := flagConfig
	if path == "" {
		path = filepath.Join(".subdoc", "config.toml")
	}
	cfg, err := subdoc.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		abs, err := filepath.Abs(flagDB)
		if err != nil {
			return nil, fmt.Errorf("resolving --db %q: %w", flagDB, err)
		}
		cfg.History = abs
	}
	return cfg, nil
}
