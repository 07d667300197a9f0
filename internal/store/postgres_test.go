package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadhunter/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func businessRow(id, name string, score int) []any {
	return []any{
		id, name, nil, "Lyon", "69001", nil, nil,
		nil, nil, "https://" + id + ".fr", nil, "restaurant", "manual",
		nil, nil, nil, nil, score,
		"new", nil, testNow, testNow,
	}
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_AssemblesChildren(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows(businessColumns).AddRow(businessRow("b1", "Chez Paul", 72)...))
	mock.ExpectQuery(`FROM notes WHERE business_id = \$1 ORDER BY created_at, id`).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows(noteColumns).
			AddRow("n1", "b1", "first call", testNow).
			AddRow("n2", "b1", "sent quote", testNow))
	mock.ExpectQuery(`FROM quality_audits WHERE business_id = \$1`).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows(auditColumns).AddRow(
			"b1", "https://b1.fr", 42, nil,
			nil, nil, true, false,
			false, nil, "wordpress", nil, nil,
			[]byte(`[{"type":"mobile","severity":"critical","title":"Not mobile friendly","message":"No viewport"}]`), 42, testNow,
		))

	b, err := s.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "Chez Paul", b.Name)
	assert.Equal(t, 72, b.ProspectScore())
	assert.Equal(t, model.SectorRestaurant, b.Sector)
	assert.Empty(t, b.ExternalID)
	require.Len(t, b.Notes, 2)
	require.NotNil(t, b.Audit)
	assert.Equal(t, 42, *b.Audit.PerformanceScore)
	assert.Nil(t, b.Audit.AccessibilityScore)
	assert.Equal(t, "wordpress", *b.Audit.CMS)
	require.Len(t, b.Audit.Issues, 1)
	assert.Equal(t, model.IssueTypeMobile, b.Audit.Issues[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List_Ordered(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM businesses ORDER BY seq`).
		WillReturnRows(pgxmock.NewRows(businessColumns).
			AddRow(businessRow("a", "A", 10)...).
			AddRow(businessRow("b", "B", 90)...))
	mock.ExpectQuery(`FROM notes ORDER BY created_at, id`).
		WillReturnRows(pgxmock.NewRows(noteColumns).AddRow("n1", "b", "hi", testNow))
	mock.ExpectQuery(`FROM quality_audits`).
		WillReturnRows(pgxmock.NewRows(auditColumns))

	all, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Empty(t, all[0].Notes)
	assert.Len(t, all[1].Notes, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Insert_Duplicate(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO businesses .* ON CONFLICT DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	err := s.Insert(context.Background(), newBusiness("b1", "Lead"))
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Insert_WritesChildren(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	b := newBusiness("b1", "Lead")
	b.Website = strPtr("https://lead.fr")
	b.Notes = []model.Note{{ID: "n1", BusinessID: "b1", Content: "seed", CreatedAt: testNow}}
	b.Audit = &model.QualityAudit{URL: "https://lead.fr", IsHTTPS: true, AuditedAt: testNow}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO businesses`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"notes"}, noteColumns).WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"quality_audits"}, auditColumns).WillReturnResult(1)
	mock.ExpectCommit()

	require.NoError(t, s.Insert(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMany(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	dup := newBusiness("y", "Dup")
	dup.Source = model.SourcePlacesSearch
	dup.ExternalID = "p1"
	fresh := newBusiness("z", "Fresh")
	fresh.Source = model.SourcePlacesSearch
	fresh.ExternalID = "p2"
	fresh.Notes = []model.Note{{ID: "nz", BusinessID: "z", Content: "hello", CreatedAt: testNow}}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_businesses"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_businesses"}, businessColumns).WillReturnResult(2)
	mock.ExpectQuery(`ON CONFLICT \("source", "external_id"\) DO NOTHING RETURNING "id"`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("z"))
	mock.ExpectCopyFrom(pgx.Identifier{"notes"}, noteColumns).WillReturnResult(1)
	mock.ExpectCommit()

	n, err := s.InsertMany(context.Background(), []*model.Business{dup, fresh})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMany_Empty(t *testing.T) {
	t.Parallel()
	s, _ := newMockPostgresStore(t)
	n, err := s.InsertMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgresStore_Update_NotFound(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE businesses SET name = \$1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.Update(context.Background(), newBusiness("ghost", "Ghost"))
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_UpsertsAudit(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	b := newBusiness("b1", "Lead")
	b.Audit = &model.QualityAudit{URL: "https://lead.fr", AuditedAt: testNow}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE businesses SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO quality_audits .* ON CONFLICT \(business_id\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Update(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_ClearsAudit(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE businesses SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM quality_audits WHERE business_id = \$1`).
		WithArgs("b1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Update(context.Background(), newBusiness("b1", "Lead")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM businesses WHERE id = \$1`).
		WithArgs("b1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM businesses WHERE id = \$1`).
		WithArgs("b1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Delete(context.Background(), "b1"))
	assert.True(t, model.IsNotFound(s.Delete(context.Background(), "b1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddNote_MissingBusiness(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO notes`).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

	err := s.AddNote(context.Background(), model.Note{ID: "n1", BusinessID: "missing", Content: "x", CreatedAt: testNow})
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_RequiresPool(t *testing.T) {
	t.Parallel()
	s, _ := newMockPostgresStore(t)
	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live connection pool")
}

func TestPostgresStore_Ping(t *testing.T) {
	t.Parallel()
	s, _ := newMockPostgresStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
