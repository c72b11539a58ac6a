package database

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverLibSQL   = "libsql"
)

type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDBConnection abre a conexão, configura o pool e testa o Ping.
func NewDBConnection(opts Options) (*sqlx.DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverPostgres
	}

	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("could not open %s database: %w", opts.Driver, err)
	}

	if isSQLiteDialect(opts.Driver) {
		// SQLite has a single writer; one connection also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxIdleConns)
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ping %s database: %w", opts.Driver, err)
	}

	if opts.Driver == DriverSQLite {
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
			}
		}
	}

	return db, nil
}

// Migrate applies the embedded schema for the connection's dialect. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	file := "schema/postgres.sql"
	if isSQLiteDialect(db.DriverName()) {
		file = "schema/sqlite.sql"
	}

	raw, err := schemaFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func isSQLiteDialect(driver string) bool {
	return driver == DriverSQLite || driver == DriverLibSQL
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
