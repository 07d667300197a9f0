package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadhunter/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

var (
	sqliteInsertBusiness = "INSERT INTO businesses (" + strings.Join(businessColumns, ", ") + ") VALUES (" +
		placeholders(len(businessColumns)) + ") ON CONFLICT DO NOTHING"

	sqliteInsertNote = "INSERT INTO notes (" + strings.Join(noteColumns, ", ") + ") VALUES (" + placeholders(len(noteColumns)) + ")"

	sqliteInsertAudit = "INSERT INTO quality_audits (" + strings.Join(auditColumns, ", ") + ") VALUES (" +
		placeholders(len(auditColumns)) + ")"

	sqliteUpdateBusiness = "UPDATE businesses SET " + setList(businessColumns[1:]) + " WHERE id = ?"
)

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrate(ctx, s.db, goose.DialectSQLite3, "migrations/sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Business, error) {
	b, err := scanBusiness(s.db.QueryRowContext(ctx, businessSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get business %s", id)
	}

	notes, err := s.queryNotes(ctx, noteSelect+" WHERE business_id = ? ORDER BY created_at, rowid", id)
	if err != nil {
		return nil, err
	}
	audits, err := s.queryAudits(ctx, auditSelect+" WHERE business_id = ?", id)
	if err != nil {
		return nil, err
	}
	assemble([]*model.Business{b}, notes, audits)
	return b, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*model.Business, error) {
	rows, err := s.db.QueryContext(ctx, businessSelect+" ORDER BY rowid")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list businesses")
	}
	defer rows.Close()

	businesses := []*model.Business{}
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business")
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list businesses iterate")
	}

	notes, err := s.queryNotes(ctx, noteSelect+" ORDER BY created_at, rowid")
	if err != nil {
		return nil, err
	}
	audits, err := s.queryAudits(ctx, auditSelect)
	if err != nil {
		return nil, err
	}
	assemble(businesses, notes, audits)
	return businesses, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, b *model.Business) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := insertSQLite(ctx, tx, b)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert")
}

func (s *SQLiteStore) InsertMany(ctx context.Context, bs []*model.Business) (int, error) {
	if len(bs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	n := 0
	for _, b := range bs {
		ok, err := insertSQLite(ctx, tx, b)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert many")
	}
	return n, nil
}

// insertSQLite writes b with its notes and audit. It reports false when b
// conflicts with a stored business.
func insertSQLite(ctx context.Context, tx *sql.Tx, b *model.Business) (bool, error) {
	res, err := tx.ExecContext(ctx, sqliteInsertBusiness, businessArgs(b)...)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert business %s", b.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return false, nil
	}

	for _, note := range b.Notes {
		note.BusinessID = b.ID
		if _, err := tx.ExecContext(ctx, sqliteInsertNote, noteArgs(note)...); err != nil {
			return false, eris.Wrapf(err, "sqlite: insert note for %s", b.ID)
		}
	}
	if b.Audit != nil {
		if err := insertAuditSQLite(ctx, tx, b.ID, b.Audit); err != nil {
			return false, err
		}
	}
	return true, nil
}

func insertAuditSQLite(ctx context.Context, tx *sql.Tx, businessID string, a *model.QualityAudit) error {
	args, err := auditArgs(businessID, a)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqliteInsertAudit, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert audit for %s", businessID)
	}
	return nil
}

// Update writes the scalar fields and replaces the audit. Notes are untouched.
func (s *SQLiteStore) Update(ctx context.Context, b *model.Business) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	args := append(businessArgs(b)[1:], b.ID)
	res, err := tx.ExecContext(ctx, sqliteUpdateBusiness, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return eris.Wrapf(err, "sqlite: update business %s", b.ID)
	}
	if err := checkRowsAffected(res, b.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM quality_audits WHERE business_id = ?`, b.ID); err != nil {
		return eris.Wrapf(err, "sqlite: clear audit for %s", b.ID)
	}
	if b.Audit != nil {
		if err := insertAuditSQLite(ctx, tx, b.ID, b.Audit); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit update")
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM notes WHERE business_id = ?`,
		`DELETE FROM quality_audits WHERE business_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete children of %s", id)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM businesses WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete business %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func (s *SQLiteStore) AddNote(ctx context.Context, note model.Note) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM businesses WHERE id = ?`, note.BusinessID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(note.BusinessID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: lookup business %s", note.BusinessID)
	}

	if _, err := s.db.ExecContext(ctx, sqliteInsertNote, noteArgs(note)...); err != nil {
		return eris.Wrapf(err, "sqlite: insert note for %s", note.BusinessID)
	}
	return nil
}

func (s *SQLiteStore) queryNotes(ctx context.Context, query string, args ...any) ([]model.Note, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query notes")
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "sqlite: query notes iterate")
}

func (s *SQLiteStore) queryAudits(ctx context.Context, query string, args ...any) ([]*model.QualityAudit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query audits")
	}
	defer rows.Close()

	var audits []*model.QualityAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		audits = append(audits, a)
	}
	return audits, eris.Wrap(rows.Err(), "sqlite: query audits iterate")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func setList(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = ?"
	}
	return strings.Join(parts, ", ")
}
