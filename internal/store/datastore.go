package store

// Recorder is the history access the sync engine needs. *Store satisfies
// it; tests substitute in-memory fakes.
type Recorder interface {
	RecordPick(language string) error
	RecentLanguages(limit int) ([]string, error)
	RecordEvent(ev *Event) (int64, error)
	Close() error
}

// Compile-time check: *Store satisfies Recorder.
var _ Recorder = (*Store)(nil)
