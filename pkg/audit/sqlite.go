package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is an embedded durable audit sink. One process, one file; the
// envelope store stays in postgres, the trail does not need to.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		actor_id TEXT,
		envelope_id TEXT,
		action TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		metadata JSON
	);
	CREATE INDEX IF NOT EXISTS idx_audit_envelope ON audit_entries(envelope_id, timestamp);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	fill(&e)
	metaJSON, _ := json.Marshal(e.Metadata)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, type, actor_id, envelope_id, action, timestamp, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.ActorID, e.EnvelopeID, e.Action, e.Timestamp.UTC().Format(time.RFC3339Nano), string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListByEnvelope returns the recorded trail for one envelope, oldest first.
func (s *SQLiteStore) ListByEnvelope(ctx context.Context, envelopeID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, actor_id, envelope_id, action, timestamp, metadata FROM audit_entries WHERE envelope_id = ? ORDER BY timestamp ASC`,
		envelopeID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var typ, ts string
		var metaJSON sql.NullString
		if err := rows.Scan(&e.ID, &typ, &e.ActorID, &e.EnvelopeID, &e.Action, &ts, &metaJSON); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
