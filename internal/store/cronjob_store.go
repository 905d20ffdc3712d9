package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/mrcserr"
)

// Cronjob is a persisted schedule entry: fire an event addressed to Target
// once model time reaches OnDatetime. Id is nil until Save assigns one;
// once assigned, a Cronjob is immutable — there is no Update.
type Cronjob struct {
	Id         *int
	Target     equipment.Id
	EventId    string
	OnDatetime time.Time
}

// CronjobStore persists Cronjobs in the table the source system calls
// cronjobs_v1: UNIQUE(target, event_id, on_datetime) ON CONFLICT REPLACE
// gives insert-or-replace semantics for the (target, event, time) triple,
// so re-scheduling the same event at the same instant for the same target
// replaces the existing row (the new row gets its own id) rather than
// adding a duplicate.
type CronjobStore struct {
	h *Handle
}

// NewCronjobStore builds a CronjobStore over h, creating its table and
// indexes if absent.
func NewCronjobStore(h *Handle) (*CronjobStore, error) {
	const ddl = `
		CREATE TABLE IF NOT EXISTS cronjobs_v1 (
			id INTEGER PRIMARY KEY,
			target TEXT NOT NULL,
			event_id TEXT NOT NULL,
			on_datetime TIMESTAMP NOT NULL,
			UNIQUE(target, event_id, on_datetime) ON CONFLICT REPLACE
		);
		CREATE INDEX IF NOT EXISTS cronjobs_v1_id ON cronjobs_v1(id);
		CREATE INDEX IF NOT EXISTS cronjobs_v1_on_datetime ON cronjobs_v1(on_datetime);
		CREATE INDEX IF NOT EXISTS cronjobs_v1_target ON cronjobs_v1(target);
	`
	if _, err := h.DB().Exec(ddl); err != nil {
		return nil, fmt.Errorf("store: create cronjobs_v1: %w", err)
	}
	return &CronjobStore{h: h}, nil
}

// Save inserts job and returns it with Id populated. job.Id must be nil;
// cron jobs are immutable once saved.
func (s *CronjobStore) Save(job Cronjob) (Cronjob, error) {
	if job.Id != nil {
		return Cronjob{}, fmt.Errorf("%w: cron jobs are immutable", mrcserr.ErrImmutableViolation)
	}

	res, err := s.h.DB().Exec(
		`INSERT INTO cronjobs_v1 (target, event_id, on_datetime) VALUES (?, ?, ?)`,
		job.Target.Format(), job.EventId, job.OnDatetime.UTC(),
	)
	if err != nil {
		return Cronjob{}, fmt.Errorf("store: save cronjob: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Cronjob{}, fmt.Errorf("store: save cronjob: %w", err)
	}
	n := int(id)
	job.Id = &n
	return job, nil
}

// FindDue returns every job whose OnDatetime is at or before now, ordered
// ascending so the earliest fires first; ties at the same instant break by
// insertion order (id), not by target.
func (s *CronjobStore) FindDue(now time.Time) ([]Cronjob, error) {
	rows, err := s.h.DB().Query(
		`SELECT id, target, event_id, on_datetime FROM cronjobs_v1 WHERE on_datetime <= ? ORDER BY on_datetime, id`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: find due cronjobs: %w", err)
	}
	defer rows.Close()
	return scanCronjobs(rows)
}

// FindAll returns every persisted job, ordered the same way as FindDue.
func (s *CronjobStore) FindAll() ([]Cronjob, error) {
	rows, err := s.h.DB().Query(`SELECT id, target, event_id, on_datetime FROM cronjobs_v1 ORDER BY on_datetime, id`)
	if err != nil {
		return nil, fmt.Errorf("store: find all cronjobs: %w", err)
	}
	defer rows.Close()
	return scanCronjobs(rows)
}

// Delete removes the job with the given id. Cron calls this immediately
// after firing a job.
func (s *CronjobStore) Delete(id int) error {
	if _, err := s.h.DB().Exec(`DELETE FROM cronjobs_v1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete cronjob %d: %w", id, err)
	}
	return nil
}

func scanCronjobs(rows *sql.Rows) ([]Cronjob, error) {
	var out []Cronjob
	for rows.Next() {
		var id int
		var target string
		var job Cronjob
		var onDatetime time.Time

		if err := rows.Scan(&id, &target, &job.EventId, &onDatetime); err != nil {
			return nil, fmt.Errorf("store: scan cronjob: %w", err)
		}

		targetId, err := equipment.ParseId(target)
		if err != nil {
			return nil, fmt.Errorf("store: scan cronjob: %w", err)
		}

		job.Id = &id
		job.Target = targetId
		job.OnDatetime = onDatetime
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan cronjobs: %w", err)
	}
	return out, nil
}
