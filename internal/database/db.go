package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Options carries the connection parameters for Open.
type Options struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// Open connects to MySQL and verifies the connection.
func Open(opts Options) (*sql.DB, error) {
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := mysql.NewConfig()
	dsn.User = opts.User
	dsn.Passwd = opts.Pass
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%s", opts.Host, opts.Port)
	dsn.DBName = opts.Name
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	// RowsAffected reports matched rows, so a no-op UPDATE still counts as found
	dsn.ClientFoundRows = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates any missing tables.  Statements are idempotent so it is
// safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
