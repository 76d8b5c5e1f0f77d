package planetable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLStore keeps plane tables in a SQLite database, one table of records per
// named source. It implements Source for the source it is bound to.
type SQLStore struct {
	db     *sql.DB
	source string
}

const createPlanes = `CREATE TABLE IF NOT EXISTS planes (
	source   TEXT    NOT NULL,
	subblock INTEGER NOT NULL,
	s INTEGER NOT NULL, m INTEGER NOT NULL,
	t INTEGER NOT NULL, c INTEGER NOT NULL, z INTEGER NOT NULL,
	x REAL NOT NULL, y REAL NOT NULL, zpos REAL NOT NULL, time REAL NOT NULL,
	xstart INTEGER NOT NULL, ystart INTEGER NOT NULL,
	width INTEGER NOT NULL, height INTEGER NOT NULL,
	PRIMARY KEY (source, subblock)
)`

// OpenSQLite opens (creating if needed) a plane table database at path.
// Lookups through FirstRecord read the records saved under source.
func OpenSQLite(path, source string) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("planetable: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("planetable: create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("planetable: open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(createPlanes); err != nil {
		db.Close()
		return nil, fmt.Errorf("planetable: create planes table: %w", err)
	}
	return &SQLStore{db: db, source: source}, nil
}

// Bind returns a store over the same database bound to another source.
func (s *SQLStore) Bind(source string) *SQLStore {
	return &SQLStore{db: s.db, source: source}
}

// Close closes the database, including for stores created by Bind.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Save replaces the records stored for the bound source with tbl.
func (s *SQLStore) Save(ctx context.Context, tbl Table) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("planetable: begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM planes WHERE source = ?`, s.source); err != nil {
		return fmt.Errorf("planetable: clear %s: %w", s.source, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO planes
		(source, subblock, s, m, t, c, z, x, y, zpos, time, xstart, ystart, width, height)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("planetable: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range tbl {
		if _, err := stmt.ExecContext(ctx, s.source, r.Subblock, r.S, r.M, r.T, r.C, r.Z,
			r.X, r.Y, r.ZPos, r.Time, r.XStart, r.YStart, r.Width, r.Height); err != nil {
			return fmt.Errorf("planetable: insert subblock %d: %w", r.Subblock, err)
		}
	}
	return tx.Commit()
}

// Load returns all records of the bound source in subblock order.
func (s *SQLStore) Load(ctx context.Context) (Table, error) {
	rows, err := s.db.QueryContext(ctx, selectPlanes+` WHERE source = ? ORDER BY subblock`, s.source)
	if err != nil {
		return nil, fmt.Errorf("planetable: select: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tbl Table
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		tbl = append(tbl, r)
	}
	return tbl, rows.Err()
}

// FirstRecord implements Source.
func (s *SQLStore) FirstRecord(ctx context.Context, c, t, z int) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		selectPlanes+` WHERE source = ? AND c = ? AND t = ? AND z = ? ORDER BY subblock LIMIT 1`,
		s.source, c, t, z)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, &RecordNotFoundError{Channel: c, Timepoint: t, ZPlane: z}
	}
	return r, err
}

const selectPlanes = `SELECT subblock, s, m, t, c, z, x, y, zpos, time, xstart, ystart, width, height FROM planes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var r Record
	err := sc.Scan(&r.Subblock, &r.S, &r.M, &r.T, &r.C, &r.Z,
		&r.X, &r.Y, &r.ZPos, &r.Time, &r.XStart, &r.YStart, &r.Width, &r.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, fmt.Errorf("planetable: scan: %w", err)
	}
	return r, nil
}
