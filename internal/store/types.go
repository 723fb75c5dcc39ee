package store

import "time"

// EventKind names a link lifecycle event.
type EventKind string

const (
	EventOpened       EventKind = "opened"
	EventSyncedToHost EventKind = "synced_to_host"
	EventSyncedToSub  EventKind = "synced_to_sub"
	EventClosed       EventKind = "closed"
)

type Pick struct {
	ID       int64
	Language string
	PickedAt time.Time
}

type Event struct {
	ID       int64
	LinkID   string
	HostDoc  string
	SubDoc   string
	Language string
	Kind     EventKind
	Reason   string
	At       time.Time
}
