package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
)

// ClockStore persists the single authoritative Clock row, keyed by host
// identity (so a shared database could in principle serve more than one
// ClockManager, even though the fleet only ever runs one).
type ClockStore struct {
	h    *Handle
	host string
}

// NewClockStore builds a ClockStore over h, keyed to host.
func NewClockStore(h *Handle, host string) (*ClockStore, error) {
	const ddl = `
		CREATE TABLE IF NOT EXISTS clock_v1 (
			host TEXT PRIMARY KEY,
			is_running INTEGER NOT NULL,
			speed INTEGER NOT NULL,
			anchor_model TIMESTAMP NOT NULL,
			tick_interval_seconds REAL NOT NULL
		)`
	if _, err := h.DB().Exec(ddl); err != nil {
		return nil, fmt.Errorf("store: create clock_v1: %w", err)
	}
	return &ClockStore{h: h, host: host}, nil
}

// Load returns the persisted Clock for the store's host, or
// (Clock{}, false, nil) if none has been saved yet.
func (s *ClockStore) Load() (clock.Clock, bool, error) {
	row := s.h.DB().QueryRow(
		`SELECT is_running, speed, anchor_model, tick_interval_seconds FROM clock_v1 WHERE host = ?`,
		s.host,
	)

	var isRunning bool
	var speed int
	var anchorModel time.Time
	var tickSeconds float64

	if err := row.Scan(&isRunning, &speed, &anchorModel, &tickSeconds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return clock.Clock{}, false, nil
		}
		return clock.Clock{}, false, fmt.Errorf("store: load clock: %w", err)
	}

	c, err := clock.New(isRunning, speed, time.Now(), anchorModel, time.Duration(tickSeconds*float64(time.Second)))
	if err != nil {
		return clock.Clock{}, false, fmt.Errorf("store: load clock: %w", err)
	}
	return c, true, nil
}

// Delete erases the store's host's authoritative Clock row, the
// administrative "forget the configured clock" shortcut the clock-conf
// tool's --delete mode applies directly against the database, bypassing
// the broker entirely.
func (s *ClockStore) Delete() error {
	if _, err := s.h.DB().Exec(`DELETE FROM clock_v1 WHERE host = ?`, s.host); err != nil {
		return fmt.Errorf("store: delete clock: %w", err)
	}
	return nil
}

// Save upserts c as the store's host's authoritative Clock row.
func (s *ClockStore) Save(c clock.Clock) error {
	_, err := s.h.DB().Exec(
		`INSERT INTO clock_v1 (host, is_running, speed, anchor_model, tick_interval_seconds)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(host) DO UPDATE SET
			is_running = excluded.is_running,
			speed = excluded.speed,
			anchor_model = excluded.anchor_model,
			tick_interval_seconds = excluded.tick_interval_seconds`,
		s.host, c.IsRunning, c.Speed, c.AnchorModel.UTC(), c.TickInterval.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("store: save clock: %w", err)
	}
	return nil
}
