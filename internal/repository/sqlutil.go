package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/venue-booking/internal/database"
)

// execQuerier is satisfied by both *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// insertID runs an INSERT and returns the generated id: LastInsertId on
// MySQL, RETURNING id on Postgres.
func insertID(ctx context.Context, q execQuerier, d database.Dialect, query string, args ...any) (uint64, error) {
	if d == database.Postgres {
		var id uint64
		err := q.QueryRowContext(ctx, database.Rebind(d, query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
