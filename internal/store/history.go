package store

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Language picks ---

// RecordPick appends a language pick stamped with the current time.
func (s *Store) RecordPick(language string) error {
	_, err := s.db.Exec(
		"INSERT INTO language_picks (language, picked_at) VALUES (?, ?)",
		language, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record pick: %w", err)
	}
	return nil
}

// RecentLanguages returns distinct picked languages, most recent first.
// limit <= 0 returns all of them.
func (s *Store) RecentLanguages(limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		"SELECT language FROM language_picks GROUP BY language ORDER BY MAX(id) DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent languages: %w", err)
	}
	defer rows.Close()
	var langs []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

// LastLanguage returns the most recently picked language.
func (s *Store) LastLanguage() (string, bool, error) {
	var l string
	err := s.db.QueryRow("SELECT language FROM language_picks ORDER BY id DESC LIMIT 1").Scan(&l)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("last language: %w", err)
	}
	return l, true, nil
}

// RecentPicks returns up to limit picks, most recent first.
func (s *Store) RecentPicks(limit int) ([]*Pick, error) {
	rows, err := s.db.Query(
		"SELECT id, language, picked_at FROM language_picks ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent picks: %w", err)
	}
	defer rows.Close()
	var picks []*Pick
	for rows.Next() {
		p := &Pick{}
		if err := rows.Scan(&p.ID, &p.Language, &p.PickedAt); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

// --- Link events ---

// RecordEvent inserts ev, stamping At when zero, and sets ev.ID.
func (s *Store) RecordEvent(ev *Event) (int64, error) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO link_events (link_id, host_doc, sub_doc, language, kind, reason, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.LinkID, ev.HostDoc, ev.SubDoc, ev.Language, string(ev.Kind), ev.Reason, ev.At,
	)
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	ev.ID = id
	return id, nil
}

func (s *Store) scanEvent(scanner interface{ Scan(...any) error }) (*Event, error) {
	ev := &Event{}
	var kind string
	var reason sql.NullString
	if err := scanner.Scan(&ev.ID, &ev.LinkID, &ev.HostDoc, &ev.SubDoc, &ev.Language, &kind, &reason, &ev.At); err != nil {
		return nil, err
	}
	ev.Kind = EventKind(kind)
	ev.Reason = reason.String
	return ev, nil
}

func (s *Store) queryEvents(query string, args ...any) ([]*Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []*Event
	for rows.Next() {
		ev, err := s.scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

const eventColumns = "id, link_id, host_doc, sub_doc, language, kind, reason, at"

// EventsForLink returns a link's events in the order they were recorded.
func (s *Store) EventsForLink(linkID string) ([]*Event, error) {
	events, err := s.queryEvents("SELECT "+eventColumns+" FROM link_events WHERE link_id = ? ORDER BY id", linkID)
	if err != nil {
		return nil, fmt.Errorf("events for link: %w", err)
	}
	return events, nil
}

// RecentEvents returns up to limit events, most recent first.
func (s *Store) RecentEvents(limit int) ([]*Event, error) {
	events, err := s.queryEvents("SELECT "+eventColumns+" FROM link_events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}

// CountEvents returns how many events of kind a link has recorded.
func (s *Store) CountEvents(linkID string, kind EventKind) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM link_events WHERE link_id = ? AND kind = ?", linkID, string(kind),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
