// Package pklhist records the streams decoded by a server in a SQLite database.
package pklhist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/tai64"
	_ "modernc.org/sqlite"

	"ricklepick.dev/ricklepick"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pvm"
)

type ErrNotFound struct {
	ID int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no history entry %d", e.ID)
}

// Open opens the database at p.
// ":memory:" opens a database which lives as long as the returned handle.
func Open(p string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// each connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	return db, nil
}

// Setup creates the tables used by Store, if they do not exist.
func Setup(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS decodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint BLOB NOT NULL,
		size INTEGER NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		err TEXT NOT NULL DEFAULT '',
		err_kind TEXT NOT NULL DEFAULT '',
		tai_sec INTEGER NOT NULL,
		tai_nsec INTEGER NOT NULL
	)`)
	return err
}

// Entry is one recorded decode.
type Entry struct {
	ID          int64  `db:"id" json:"id"`
	Fingerprint []byte `db:"fingerprint" json:"fingerprint"`
	Size        int64  `db:"size" json:"size"`
	// Kind is the kind of the decoded value, empty if decoding failed.
	Kind    string `db:"kind" json:"kind,omitempty"`
	Err     string `db:"err" json:"error,omitempty"`
	ErrKind string `db:"err_kind" json:"error_kind,omitempty"`
	// TAISec and TAINsec are the TAI64N time the entry was recorded.
	TAISec  uint64 `db:"tai_sec" json:"tai_sec"`
	TAINsec uint32 `db:"tai_nsec" json:"tai_nsec"`
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Record adds an entry for the decode of data, which produced x or failed with decErr.
func (s *Store) Record(ctx context.Context, data []byte, x pklmem.Value, decErr error) (int64, error) {
	fp := ricklepick.Hash(nil, data)
	e := Entry{Fingerprint: fp[:], Size: int64(len(data))}
	if decErr != nil {
		e.Err = decErr.Error()
		if k := pvm.KindOf(decErr); k != nil {
			e.ErrKind = k.Error()
		}
	} else if x != nil {
		e.Kind = x.Kind().String()
	}
	now := tai64.Now()
	e.TAISec, e.TAINsec = uint64(now.Seconds), uint32(now.Nanoseconds)

	var id int64
	err := s.db.GetContext(ctx, &id, `INSERT INTO decodes (fingerprint, size, kind, err, err_kind, tai_sec, tai_nsec)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.Fingerprint, e.Size, e.Kind, e.Err, e.ErrKind, int64(e.TAISec), int64(e.TAINsec))
	return id, err
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	var ents []Entry
	if err := s.db.SelectContext(ctx, &ents, `SELECT * FROM decodes ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	return ents, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	var e Entry
	if err := s.db.GetContext(ctx, &e, `SELECT * FROM decodes WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound{ID: id}
		}
		return nil, err
	}
	return &e, nil
}
