package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists history records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS dispatch_history (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        closed_at INTEGER,
        outcome TEXT,
        record TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dispatch_history (closed_at, outcome, record) VALUES (?, ?, ?)`,
		rec.ClosedAt.Unix(), rec.Outcome, string(b))
	return err
}

// Query returns records whose ClosedAt falls in w, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, w Window) ([]Record, error) {
	query := `SELECT record FROM dispatch_history WHERE 1=1`
	var args []any
	if !w.Start.IsZero() {
		query += ` AND closed_at >= ?`
		args = append(args, w.Start.Unix())
	}
	if !w.End.IsZero() {
		query += ` AND closed_at <= ?`
		args = append(args, w.End.Unix())
	}
	query += ` ORDER BY closed_at ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
