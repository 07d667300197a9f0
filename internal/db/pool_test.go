package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "notes", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock := newMock(t)
	cols := []string{"id", "business_id", "content"}
	mock.ExpectCopyFrom(pgx.Identifier{"notes"}, cols).WillReturnResult(3)

	n, err := CopyFrom(context.Background(), mock, "notes", cols, [][]any{
		{"n1", "b1", "a"}, {"n2", "b1", "b"}, {"n3", "b2", "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock := newMock(t)
	mock.ExpectCopyFrom(pgx.Identifier{"notes"}, []string{"id"}).WillReturnError(errors.New("conn reset"))

	_, err := CopyFrom(context.Background(), mock, "notes", []string{"id"}, [][]any{{"n1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO notes")
}
