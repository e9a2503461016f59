package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
)

// Dialect names the SQL flavor of this package.
const Dialect = "mysql"

// DB is a repository.Storage backed by one MySQL connection pool.
type DB struct {
	conn *sql.DB
}

// NewDB opens a pooled connection and verifies it within cfg.Timeout.
func NewDB(cfg *config.MySQLConfig) (*DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config is required")
	}

	connector, err := mysql.NewConnector(driverConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("building mysql connector: %w", err)
	}

	conn := sql.OpenDB(connector)
	conn.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.Pool.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connecting to %s: %w", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), err)
	}

	return &DB{conn: conn}, nil
}

func driverConfig(cfg *config.MySQLConfig) *mysql.Config {
	dc := mysql.NewConfig()
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dc.DBName = cfg.Database
	dc.User = cfg.Username
	dc.Passwd = cfg.Password
	dc.Timeout = cfg.Timeout
	dc.ParseTime = cfg.ParseTime
	if cfg.Charset != "" {
		// Charset never fails.
		_ = dc.Apply(mysql.Charset(cfg.Charset, ""))
	}
	return dc
}

// DB returns the connection pool.
func (db *DB) DB() *sql.DB {
	return db.conn
}

// Dialect returns "mysql".
func (db *DB) Dialect() string {
	return Dialect
}

// Ping checks the server is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}
