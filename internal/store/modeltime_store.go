package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ModelTimeStore persists the last model-time instant Cron observed, keyed
// by host. This is distinct from ClockStore: it is Cron's own bookmark of
// "where the virtual clock was last seen", not the ClockManager's
// authoritative configuration. Cron saves and clears it; Cron does not
// load it at startup.
type ModelTimeStore struct {
	h    *Handle
	host string
}

// NewModelTimeStore builds a ModelTimeStore over h, keyed to host.
func NewModelTimeStore(h *Handle, host string) (*ModelTimeStore, error) {
	const ddl = `
		CREATE TABLE IF NOT EXISTS model_time_v1 (
			host TEXT PRIMARY KEY,
			model_time TIMESTAMP NOT NULL
		)`
	if _, err := h.DB().Exec(ddl); err != nil {
		return nil, fmt.Errorf("store: create model_time_v1: %w", err)
	}
	return &ModelTimeStore{h: h, host: host}, nil
}

// Load returns the last persisted model time, or (zero, false, nil) if
// none has been saved.
func (s *ModelTimeStore) Load() (time.Time, bool, error) {
	row := s.h.DB().QueryRow(`SELECT model_time FROM model_time_v1 WHERE host = ?`, s.host)
	var t time.Time
	if err := row.Scan(&t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("store: load model time: %w", err)
	}
	return t, true, nil
}

// Save upserts the last-observed model time.
func (s *ModelTimeStore) Save(t time.Time) error {
	_, err := s.h.DB().Exec(
		`INSERT INTO model_time_v1 (host, model_time) VALUES (?, ?)
		 ON CONFLICT(host) DO UPDATE SET model_time = excluded.model_time`,
		s.host, t.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: save model time: %w", err)
	}
	return nil
}

// Delete removes the persisted model time — the fresh-run semantics Cron
// applies at startup when model-time persistence is disabled.
func (s *ModelTimeStore) Delete() error {
	if _, err := s.h.DB().Exec(`DELETE FROM model_time_v1 WHERE host = ?`, s.host); err != nil {
		return fmt.Errorf("store: delete model time: %w", err)
	}
	return nil
}
