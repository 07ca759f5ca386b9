package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUp_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, stmt := range upStatements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	assert.NoError(t, MigrateUp(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_StopsAtFirstError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").
		WillReturnError(sql.ErrConnDone)

	err = MigrateUp(context.Background(), db)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Contains(t, err.Error(), "step 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_CreatesChangeFeedColumns(t *testing.T) {
	var articles, stories string
	for _, stmt := range upStatements {
		switch {
		case regexp.MustCompile(`^CREATE TABLE IF NOT EXISTS articles`).MatchString(stmt):
			articles = stmt
		case regexp.MustCompile(`^CREATE TABLE IF NOT EXISTS stories`).MatchString(stmt):
			stories = stmt
		}
	}
	assert.Contains(t, articles, "nextval('articles_seq')")
	assert.Contains(t, articles, "partition_key")
	assert.Contains(t, stories, "nextval('stories_seq')")
	assert.Contains(t, stories, "version")
	assert.Contains(t, stories, "centroid             vector")
}

func TestMigrateDown_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, stmt := range downStatements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	assert.NoError(t, MigrateDown(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateDown_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(downStatements[0])).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(downStatements[1])).WillReturnError(sql.ErrTxDone)

	err = MigrateDown(context.Background(), db)
	assert.ErrorIs(t, err, sql.ErrTxDone)
	assert.Contains(t, err.Error(), "step 2")
}
