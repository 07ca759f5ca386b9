// Package postgres implements the repository interfaces on PostgreSQL.
//
// Every table carries a seq column fed from a sequence; reading rows with seq above a
// checkpoint is the change feed. Stories also carry a version column used for
// compare-and-set updates.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Querier is the subset of *sql.DB the repositories use.
// circuitbreaker.DBCircuitBreaker satisfies it as well.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation from
// either the pgx or the lib/pq driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// vectorArg converts an embedding to a query argument; empty becomes NULL.
func vectorArg(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// parseVector decodes a nullable vector column.
func parseVector(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || len(raw.String) < 3 {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Parse(raw.String); err != nil {
		return nil, err
	}
	return v.Slice(), nil
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
