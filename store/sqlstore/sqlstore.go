// Package sqlstore keeps blobs in one SQLite table, registered as "sqlite".
// Ids are stored as INTEGER, so they must fit in an int64.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/IvanBrykalov/mapgen/store"
)

func init() {
	store.Register("sqlite", func(location string) (store.Blobs, error) { return Open(location) })
}

type Store struct {
	conn *sql.DB
	// serializes writers; SQLite allows one at a time anyway
	wrMutex sync.Mutex
}

var (
	_ store.Blobs = (*Store)(nil)
	_ store.Sizer = (*Store)(nil)
)

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=2000;",
		`CREATE TABLE IF NOT EXISTS blobs (
			id	INTEGER NOT NULL PRIMARY KEY,
			data	BLOB NOT NULL
		);`,
	} {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", stmt, err)
		}
	}
	return &Store{conn: conn}, nil
}

func sqlID(id uint64) (int64, error) {
	if id > math.MaxInt64 {
		return 0, fmt.Errorf("sqlstore: id %d out of range", id)
	}
	return int64(id), nil
}

func (s *Store) Get(ctx context.Context, id uint64) ([]byte, error) {
	n, err := sqlID(id)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.conn.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id=?`, n).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return data, err
}

func (s *Store) Size(ctx context.Context, id uint64) (int64, error) {
	n, err := sqlID(id)
	if err != nil {
		return 0, err
	}
	var size int64
	err = s.conn.QueryRowContext(ctx, `SELECT length(data) FROM blobs WHERE id=?`, n).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	return size, err
}

func (s *Store) Put(ctx context.Context, id uint64, data []byte) error {
	n, err := sqlID(id)
	if err != nil {
		return err
	}
	s.wrMutex.Lock()
	defer s.wrMutex.Unlock()
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO blobs (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data=excluded.data`, n, data)
	return err
}

func (s *Store) Delete(ctx context.Context, id uint64) (bool, error) {
	n, err := sqlID(id)
	if err != nil {
		return false, err
	}
	s.wrMutex.Lock()
	defer s.wrMutex.Unlock()
	res, err := s.conn.ExecContext(ctx, `DELETE FROM blobs WHERE id=?`, n)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *Store) IDs(ctx context.Context) ([]uint64, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM blobs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uint64(id))
	}
	return ids, rows.Err()
}

func (s *Store) Close() error { return s.conn.Close() }
