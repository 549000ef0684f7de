package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	_ "modernc.org/sqlite"
)

var (
	_ goBankID.AuthResponseStore = (*Store)(nil)
	_ goBankID.UserDirectory     = (*Store)(nil)
	_ goBankID.IdentityBinder    = (*Store)(nil)
)

type Store struct {
	db *sql.DB
}

// NewStore opens the database at dsn, for example "file:bankid.db".
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx executes fn within a transaction, committing when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func mapNotFound(err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
