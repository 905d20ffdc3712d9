package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
)

// MessageRecord is a single observed message, widened with the instant it
// was recorded and an auto-assigned id.
type MessageRecord struct {
	Id         int
	Recorded   time.Time
	RoutingKey equipment.PublicationRoutingKey
	Origin     messaging.Origin
	Body       json.RawMessage
}

// MessageLogStore persists every message the recorder node observes.
// Records are immutable: there is no update, only insert and read-back.
type MessageLogStore struct {
	h *Handle
}

// NewMessageLogStore builds a MessageLogStore over h.
func NewMessageLogStore(h *Handle) (*MessageLogStore, error) {
	const ddl = `
		CREATE TABLE IF NOT EXISTS message_log_v1 (
			uid INTEGER PRIMARY KEY,
			rec TIMESTAMP NOT NULL,
			origin TEXT NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			body TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS message_log_v1_rec ON message_log_v1(rec);
	`
	if _, err := h.DB().Exec(ddl); err != nil {
		return nil, fmt.Errorf("store: create message_log_v1: %w", err)
	}
	return &MessageLogStore{h: h}, nil
}

// Save inserts msg, recorded at the given instant.
func (s *MessageLogStore) Save(msg messaging.Message, recordedAt time.Time) (MessageRecord, error) {
	res, err := s.h.DB().Exec(
		`INSERT INTO message_log_v1 (rec, origin, source, target, body) VALUES (?, ?, ?, ?, ?)`,
		recordedAt.UTC(), string(msg.Origin), msg.RoutingKey.Source.Format(), msg.RoutingKey.Target.Format(), string(msg.Payload),
	)
	if err != nil {
		return MessageRecord{}, fmt.Errorf("store: save message record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return MessageRecord{}, fmt.Errorf("store: save message record: %w", err)
	}
	return MessageRecord{
		Id:         int(id),
		Recorded:   recordedAt.UTC(),
		RoutingKey: msg.RoutingKey,
		Origin:     msg.Origin,
		Body:       msg.Payload,
	}, nil
}

// FindSince returns every record at or after the given instant, oldest
// first.
func (s *MessageLogStore) FindSince(since time.Time) ([]MessageRecord, error) {
	rows, err := s.h.DB().Query(
		`SELECT uid, rec, origin, source, target, body FROM message_log_v1 WHERE rec >= ? ORDER BY rec`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: find message records: %w", err)
	}
	defer rows.Close()
	return scanMessageRecords(rows)
}

// FindLatest returns up to n most recently recorded records, most recent
// first — the query an operator runs to eyeball recent fleet traffic.
func (s *MessageLogStore) FindLatest(n int) ([]MessageRecord, error) {
	rows, err := s.h.DB().Query(
		`SELECT uid, rec, origin, source, target, body FROM message_log_v1 ORDER BY uid DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("store: find latest message records: %w", err)
	}
	defer rows.Close()
	return scanMessageRecords(rows)
}

func scanMessageRecords(rows *sql.Rows) ([]MessageRecord, error) {
	var out []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		var source, target, origin, body string

		if err := rows.Scan(&rec.Id, &rec.Recorded, &origin, &source, &target, &body); err != nil {
			return nil, fmt.Errorf("store: scan message record: %w", err)
		}

		src, err := equipment.ParseId(source)
		if err != nil {
			return nil, fmt.Errorf("store: scan message record: %w", err)
		}
		tgt, err := equipment.ParseFilter(target)
		if err != nil {
			return nil, fmt.Errorf("store: scan message record: %w", err)
		}

		rec.Origin = messaging.Origin(origin)
		rec.RoutingKey = equipment.PublicationRoutingKey{Source: src, Target: tgt}
		rec.Body = json.RawMessage(body)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan message records: %w", err)
	}
	return out, nil
}
