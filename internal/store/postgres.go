package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/db"
	"github.com/sells-group/leadhunter/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	pgx     *pgxpool.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	pgInsertBusiness = "INSERT INTO businesses (" + strings.Join(businessColumns, ", ") + ") VALUES (" +
		pgPlaceholders(1, len(businessColumns)) + ") ON CONFLICT DO NOTHING"

	pgUpdateBusiness = "UPDATE businesses SET " + pgSetList(businessColumns[1:]) +
		fmt.Sprintf(" WHERE id = $%d", len(businessColumns))

	pgInsertNote = "INSERT INTO notes (" + strings.Join(noteColumns, ", ") + ") VALUES (" + pgPlaceholders(1, len(noteColumns)) + ")"

	pgUpsertAudit = "INSERT INTO quality_audits (" + strings.Join(auditColumns, ", ") + ") VALUES (" +
		pgPlaceholders(1, len(auditColumns)) + ") ON CONFLICT (business_id) DO UPDATE SET " + pgExcludedList(auditColumns[1:])

	pgGetBusiness = businessSelect + " WHERE id = $1"
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_business": pgGetBusiness,
	"insert_note":  pgInsertNote,
	"upsert_audit": pgUpsertAudit,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Tables may not exist before the first migration.
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					continue
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, pgx: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s.pgx == nil {
		return eris.New("postgres: migrate requires a live connection pool")
	}
	sqlDB := stdlib.OpenDBFromPool(s.pgx)
	defer sqlDB.Close()
	return migrate(ctx, sqlDB, goose.DialectPostgres, "migrations/postgres")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Business, error) {
	b, err := scanBusiness(s.pool.QueryRow(ctx, pgGetBusiness, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get business %s", id)
	}

	notes, err := s.queryNotes(ctx, noteSelect+" WHERE business_id = $1 ORDER BY created_at, id", id)
	if err != nil {
		return nil, err
	}
	audits, err := s.queryAudits(ctx, auditSelect+" WHERE business_id = $1", id)
	if err != nil {
		return nil, err
	}
	assemble([]*model.Business{b}, notes, audits)
	return b, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*model.Business, error) {
	rows, err := s.pool.Query(ctx, businessSelect+" ORDER BY seq")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list businesses")
	}
	defer rows.Close()

	businesses := []*model.Business{}
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list businesses iterate")
	}

	notes, err := s.queryNotes(ctx, noteSelect+" ORDER BY created_at, id")
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

func (s *PostgresStore) Insert(ctx context.Context, b *model.Business) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, pgInsertBusiness, businessArgs(b)...)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert business %s", b.ID)
		}
		if tag.RowsAffected() == 0 {
			return ErrDuplicate
		}
		return writeChildren(ctx, tx, []*model.Business{b})
	})
}

// InsertMany stages the batch through COPY and skips businesses whose
// (source, external_id) is already stored.
func (s *PostgresStore) InsertMany(ctx context.Context, bs []*model.Business) (int, error) {
	if len(bs) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(bs))
	for i, b := range bs {
		rows[i] = businessArgs(b)
	}

	n := 0
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		ids, err := db.UpsertReturning(ctx, tx, db.UpsertConfig{
			Table:        "businesses",
			Columns:      businessColumns,
			ConflictKeys: []string{"source", "external_id"},
			DoNothing:    true,
			Returning:    "id",
		}, rows)
		if err != nil {
			return err
		}

		written := make(map[string]bool, len(ids))
		for _, id := range ids {
			written[id] = true
		}
		var inserted []*model.Business
		for _, b := range bs {
			if written[b.ID] {
				inserted = append(inserted, b)
				delete(written, b.ID)
			}
		}
		n = len(inserted)
		return writeChildren(ctx, tx, inserted)
	})
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert many")
	}
	return n, nil
}

// writeChildren copies the notes and audits of freshly inserted businesses.
func writeChildren(ctx context.Context, tx pgx.Tx, bs []*model.Business) error {
	var notes, audits [][]any
	for _, b := range bs {
		for _, note := range b.Notes {
			note.BusinessID = b.ID
			notes = append(notes, noteArgs(note))
		}
		if b.Audit != nil {
			args, err := auditArgs(b.ID, b.Audit)
			if err != nil {
				return err
			}
			audits = append(audits, args)
		}
	}
	if _, err := db.CopyFrom(ctx, tx, "notes", noteColumns, notes); err != nil {
		return err
	}
	if _, err := db.CopyFrom(ctx, tx, "quality_audits", auditColumns, audits); err != nil {
		return err
	}
	return nil
}

// Update writes the scalar fields and replaces the audit. Notes are untouched.
func (s *PostgresStore) Update(ctx context.Context, b *model.Business) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		args := append(businessArgs(b)[1:], b.ID)
		tag, err := tx.Exec(ctx, pgUpdateBusiness, args...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicate
			}
			return eris.Wrapf(err, "postgres: update business %s", b.ID)
		}
		if tag.RowsAffected() == 0 {
			return notFound(b.ID)
		}

		if b.Audit == nil {
			if _, err := tx.Exec(ctx, `DELETE FROM quality_audits WHERE business_id = $1`, b.ID); err != nil {
				return eris.Wrapf(err, "postgres: clear audit for %s", b.ID)
			}
			return nil
		}
		auditValues, err := auditArgs(b.ID, b.Audit)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, pgUpsertAudit, auditValues...); err != nil {
			return eris.Wrapf(err, "postgres: upsert audit for %s", b.ID)
		}
		return nil
	})
}

// Delete removes the business; notes and audit cascade.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete business %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStore) AddNote(ctx context.Context, note model.Note) error {
	_, err := s.pool.Exec(ctx, pgInsertNote, noteArgs(note)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return notFound(note.BusinessID)
		}
		return eris.Wrapf(err, "postgres: insert note for %s", note.BusinessID)
	}
	return nil
}

func (s *PostgresStore) queryNotes(ctx context.Context, query string, args ...any) ([]model.Note, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query notes")
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "postgres: query notes iterate")
}

func (s *PostgresStore) queryAudits(ctx context.Context, query string, args ...any) ([]*model.QualityAudit, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query audits")
	}
	defer rows.Close()

	var audits []*model.QualityAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		audits = append(audits, a)
	}
	return audits, eris.Wrap(rows.Err(), "postgres: query audits iterate")
}

func pgPlaceholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

func pgSetList(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	return strings.Join(parts, ", ")
}

func pgExcludedList(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = EXCLUDED." + c
	}
	return strings.Join(parts, ", ")
}
