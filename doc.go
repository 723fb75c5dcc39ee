// Package subdoc opens an embedded region of a host document, such as a
// template literal or a fenced code block, as a separate subdocument in its
// own language and keeps the two in sync while both are open.
//
// # Links
//
// An [Engine] owns at most one [Link] per host document. A Link tracks the
// region as a line/column range in the host and mirrors the whole content of
// the subdocument:
//
//   - edits in the subdocument are copied over the tracked range;
//   - host edits above or below the region only move the range;
//   - host edits inside the region are copied into the subdocument;
//   - a host edit that straddles a region boundary ends the link.
//
// Syncs are throttled per direction ([WithThrottle]) and the changes a sync
// produces are recognised by an echo tag so they never bounce back.
//
// # Usage
//
//	e, err := subdoc.New(h, subdoc.WithHistory(".subdoc/history.db"))
//	if err != nil { ... }
//	defer e.Shutdown(ctx)
//
//	l, err := e.Open(ctx, subdoc.OpenRequest{Document: doc, Cursor: pos})
//	<-l.Done()
//
// # Regions
//
// Regions are located by a finder per document language. Go, JavaScript,
// TypeScript and TSX use tree-sitter out of the box. Other languages are
// configured with a three-group regular expression ([WithPatterns]) or a
// Risor script ([WithFinder] with [LoadScriptFinder], or the scripts table of
// a [Config]).
package subdoc
