package output

import (
	"database/sql"
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/a3tai/textricator/internal/record"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	root_type  TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	run_id    TEXT    NOT NULL REFERENCES runs(id),
	id        INTEGER NOT NULL,
	parent_id INTEGER,
	type_id   TEXT    NOT NULL,
	page      INTEGER NOT NULL,
	PRIMARY KEY (run_id, id)
);
CREATE TABLE IF NOT EXISTS record_values (
	run_id     TEXT    NOT NULL,
	record_id  INTEGER NOT NULL,
	value_type TEXT    NOT NULL,
	label      TEXT    NOT NULL,
	text       TEXT    NOT NULL,
	link       TEXT,
	PRIMARY KEY (run_id, record_id, value_type)
);
`

// SQLite stores record trees in a database file. Each Write is one run,
// identified by a UUID; records keep their parent ids so trees can be
// rebuilt with a recursive query.
type SQLite struct {
	db     *sql.DB
	model  record.Model
	layout *layout
	runID  string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, m record.Model) (*SQLite, error) {
	l, err := newLayout(m)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db, model: m, layout: l, runID: uuid.NewString()}, nil
}

// RunID identifies the rows written by this writer.
func (s *SQLite) RunID() string { return s.runID }

// DB exposes the underlying database.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Write(records iter.Seq2[*record.Record, error]) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err := tx.Exec(`INSERT INTO runs (id, root_type, created_at) VALUES (?, ?, ?)`,
		s.runID, s.model.RootType(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	recStmt, err := tx.Prepare(`INSERT INTO records (run_id, id, parent_id, type_id, page) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer recStmt.Close()
	valStmt, err := tx.Prepare(`INSERT INTO record_values (run_id, record_id, value_type, label, text, link) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer valStmt.Close()

	var nextID int64
	var insert func(rec *record.Record, parent sql.NullInt64) error
	insert = func(rec *record.Record, parent sql.NullInt64) error {
		nextID++
		id := nextID
		if _, err := recStmt.Exec(s.runID, id, parent, rec.TypeID, rec.Page); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		for _, vtID := range slices.Sorted(maps.Keys(rec.Values)) {
			vt := s.model.ValueTypes()[vtID]
			if !vt.Included() {
				continue
			}
			v := rec.Values[vtID]
			link := sql.NullString{String: v.Link, Valid: v.Link != ""}
			if _, err := valStmt.Exec(s.runID, id, vtID, vt.LabelOr(vtID), v.Text, link); err != nil {
				return fmt.Errorf("insert value: %w", err)
			}
		}
		for _, child := range s.layout.children(rec) {
			if err := insert(child, sql.NullInt64{Int64: id, Valid: true}); err != nil {
				return err
			}
		}
		return nil
	}

	for rec, err := range records {
		if err != nil {
			return err
		}
		if err := insert(rec, sql.NullInt64{}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error { return s.db.Close() }
