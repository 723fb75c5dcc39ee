package main

import "time"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIRange is a JSON-friendly line/column range. Lines and columns are
// 0-based; columns count bytes.
type CLIRange struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// CLIRegion is an embedded region located in a file.
type CLIRegion struct {
	File        string   `json:"file"`
	Language    string   `json:"language"`
	StartOffset int      `json:"start_offset"`
	EndOffset   int      `json:"end_offset"`
	Range       CLIRange `json:"range"`
	Text        string   `json:"text"`
}

// CLISplice reports a region replaced through a linked subdocument.
type CLISplice struct {
	File     string   `json:"file"`
	LinkID   string   `json:"link_id"`
	Language string   `json:"language"`
	Before   CLIRange `json:"before"`
	After    CLIRange `json:"after"`
	Written  bool     `json:"written"`
	Content  string   `json:"content,omitempty"`
}

// CLILanguage names a document language and how its regions are found.
type CLILanguage struct {
	Language string `json:"language"`
	Finder   string `json:"finder"`
	Source   string `json:"source,omitempty"`
}

type CLIPick struct {
	Language string    `json:"language"`
	PickedAt time.Time `json:"picked_at"`
}

type CLIEvent struct {
	ID       int64     `json:"id"`
	LinkID   string    `json:"link_id"`
	Kind     string    `json:"kind"`
	HostDoc  string    `json:"host_doc"`
	SubDoc   string    `json:"sub_doc"`
	Language string    `json:"language"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// CLISyncCounts counts one link's syncs per direction.
type CLISyncCounts struct {
	ToHost int `json:"to_host"`
	ToSub  int `json:"to_sub"`
}

// CLIHistory is the output of the history command.
type CLIHistory struct {
	LastLanguage string         `json:"last_language,omitempty"`
	Picks        []CLIPick      `json:"picks"`
	Events       []CLIEvent     `json:"events"`
	Syncs        *CLISyncCounts `json:"syncs,omitempty"`
}
