package history

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_history (
	village TEXT PRIMARY KEY,
	count BIGINT NOT NULL DEFAULT 0,
	last BOOLEAN NOT NULL DEFAULT FALSE
)`

// persistLockKey is the transaction-level advisory lock serializing Persist
// so that concurrent searches leave exactly one row with last set.
const persistLockKey = 0x6c6f776c79696e67

// A PostgresStore is a Store backed by a PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects to the database at dsn and creates the
// search_history table if needed.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	s := &PostgresStore{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the search_history table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Persist(ctx context.Context, village string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(persistLockKey)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO search_history (village, count, last) VALUES ($1, 1, TRUE)
		ON CONFLICT (village) DO UPDATE SET count = search_history.count + 1, last = TRUE`,
		village,
	); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE search_history SET last = FALSE WHERE village <> $1 AND last`,
		village,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) Fetch(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT village, count, last FROM search_history ORDER BY village COLLATE "C"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.Village, &entry.Count, &entry.Last); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) LastSearched(ctx context.Context) (string, bool, error) {
	var village string
	switch err := s.db.QueryRowContext(ctx, `SELECT village FROM search_history WHERE last LIMIT 1`).Scan(&village); {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, err
	default:
		return village, true, nil
	}
}

// Clear deletes all history.
func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_history`)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
