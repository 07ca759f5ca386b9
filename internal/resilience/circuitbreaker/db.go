package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"

	"storywire/internal/observability/metrics"
)

// DBCircuitBreaker puts the article and story store behind one breaker.
// It satisfies the postgres Querier contract, so repositories take it in place
// of a *sql.DB.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig opens after 5 straight failures and probes again after 30s.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

func NewDBCircuitBreaker(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

// QueryContext fails fast with gobreaker.ErrOpenState while the circuit is open.
func (d *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	defer observe("query", time.Now())
	return Do(d.cb, func() (*sql.Rows, error) {
		return d.db.QueryContext(ctx, query, args...)
	})
}

func (d *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer observe("exec", time.Now())
	return Do(d.cb, func() (sql.Result, error) {
		return d.db.ExecContext(ctx, query, args...)
	})
}

// QueryRowContext bypasses the breaker: sql.Row reports its error only on Scan.
func (d *DBCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	defer observe("query_row", time.Now())
	return d.db.QueryRowContext(ctx, query, args...)
}

// Ping reports unhealthy without a round trip while the circuit is open.
func (d *DBCircuitBreaker) Ping(ctx context.Context) error {
	_, err := d.cb.Execute(func() (interface{}, error) {
		return nil, d.db.PingContext(ctx)
	})
	return err
}

func (d *DBCircuitBreaker) State() gobreaker.State {
	return d.cb.State()
}

func (d *DBCircuitBreaker) IsOpen() bool {
	return d.cb.IsOpen()
}

// DB returns the unguarded connection pool.
func (d *DBCircuitBreaker) DB() *sql.DB {
	return d.db
}

func observe(op string, start time.Time) {
	metrics.RecordDBQuery(op, time.Since(start))
}
