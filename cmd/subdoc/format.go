package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

func formatRange(r CLIRange) string {
	return fmt.Sprintf("%d:%d-%d:%d", r.StartLine, r.StartCol, r.EndLine, r.EndCol)
}

// formatRegionText formats a region as "file:range language".
func formatRegionText(w io.Writer, r CLIRegion) {
	fmt.Fprintf(w, "%s:%s %s\n", r.File, formatRange(r.Range), r.Language)
}

// formatSpliceText prints the spliced document, or a one-line summary when
// it was written back to disk.
func formatSpliceText(w io.Writer, s CLISplice) {
	if s.Written {
		fmt.Fprintf(w, "%s: %s -> %s\n", s.File, formatRange(s.Before), formatRange(s.After))
		return
	}
	fmt.Fprint(w, s.Content)
}

// formatLanguagesText formats CLILanguage results as aligned columns.
func formatLanguagesText(w io.Writer, langs []CLILanguage) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tFINDER\tSOURCE")
	for _, l := range langs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Language, l.Finder, l.Source)
	}
	tw.Flush()
}

// formatHistoryText formats picks and events as two tables.
func formatHistoryText(w io.Writer, h CLIHistory) {
	if h.LastLanguage != "" {
		fmt.Fprintf(w, "Last language: %s\n\n", h.LastLanguage)
	}
	if len(h.Picks) > 0 {
		fmt.Fprintln(w, "Language Picks:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, p := range h.Picks {
			fmt.Fprintf(tw, "  %s\t%s\n", p.PickedAt.Format(time.RFC3339), p.Language)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(h.Events) > 0 {
		fmt.Fprintln(w, "Link Events:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  AT\tLINK\tKIND\tLANGUAGE\tREASON")
		for _, e := range h.Events {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
				e.At.Format(time.RFC3339), e.LinkID, e.Kind, e.Language, e.Reason)
		}
		tw.Flush()
	}

	if h.Syncs != nil {
		fmt.Fprintf(w, "\nSyncs: %d to host, %d to subdocument\n", h.Syncs.ToHost, h.Syncs.ToSub)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIRegion:
		if result.Command == "extract" {
			fmt.Fprint(w, v.Text)
			return nil
		}
		formatRegionText(w, v)
	case CLISplice:
		formatSpliceText(w, v)
	case []CLILanguage:
		formatLanguagesText(w, v)
	case CLIHistory:
		formatHistoryText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func writeResult(w io.Writer, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
