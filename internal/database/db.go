package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Dialect selects the SQL flavour of the connected backend.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// ParseDialect accepts "mysql", "postgres" or "postgresql".
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", s)
}

// DB is a connection pool paired with the dialect its queries must use.
type DB struct {
	*sql.DB
	Dialect Dialect
	pool    *pgxpool.Pool
}

// Close closes the database/sql handle and, on postgres, the pgx pool behind it.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}

// New wraps an existing pool; tests use it with sqlmock.
func New(db *sql.DB, d Dialect) *DB { return &DB{DB: db, Dialect: d} }

// Options describes how to reach the database.
type Options struct {
	Dialect  Dialect
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

// Open connects to the configured backend and verifies the connection.
func Open(ctx context.Context, o Options) (*DB, error) {
	switch o.Dialect {
	case Postgres:
		return openPostgres(ctx, o)
	default:
		return openMySQL(ctx, o)
	}
}

func openMySQL(ctx context.Context, o Options) (*DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = o.Host + ":" + o.Port
	cfg.DBName = o.Name
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, MySQL), nil
}

func openPostgres(ctx context.Context, o Options) (*DB, error) {
	sslmode := o.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     o.Host + ":" + o.Port,
		Path:     "/" + o.Name,
		RawQuery: url.Values{"sslmode": {sslmode}, "timezone": {"UTC"}}.Encode(),
	}
	cfg, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 25
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}
	out := New(db, Postgres)
	out.pool = pool
	return out, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Rebind rewrites ? placeholders to $1..$n for Postgres. Queries in this
// module never contain a literal question mark.
func (db *DB) Rebind(q string) string { return Rebind(db.Dialect, q) }

func Rebind(d Dialect, q string) string {
	if d != Postgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUniqueViolation reports a duplicate key (MySQL 1062, Postgres 23505).
func IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

// IsExclusionViolation reports a Postgres exclusion constraint hit (23P01).
func IsExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation
}

// ConstraintName returns the violated constraint for Postgres errors, or ""
// for other backends.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
