// Package account implements registration, login and blog posts on MySQL
// connections checked out of a resource pool, plus the route handlers that
// expose them.
package account

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/codetesla51/raw-https/logging"
	"github.com/codetesla51/raw-https/pool"
)

const pingTimeout = 5 * time.Second

// ConnPool hands out dedicated database connections. *pool.Pool[*sql.Conn]
// implements it.
type ConnPool interface {
	AcquireContext(ctx context.Context) (*sql.Conn, error)
	Release(conn *sql.Conn)
}

// DBConfig names the MySQL server and schema.
type DBConfig struct {
	Host     string
	User     string
	Password string
	Database string
}

// DSN returns the driver connection string.
func (c DBConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = c.Host
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.Database
	cfg.ParseTime = true
	// Report matched rather than changed rows so an update that rewrites
	// identical values is not mistaken for a missing post.
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

// Open connects to MySQL and fills a pool with size dedicated connections.
// Connections that cannot be established are skipped.
func Open(c DBConfig, size int, log *logging.Logger) (*sql.DB, *pool.Pool[*sql.Conn], error) {
	db, err := sql.Open("mysql", c.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)
	return db, NewPool(db, size, log), nil
}

// NewPool checks size connections out of db and pools them. A connection
// is reused only while it answers a ping.
func NewPool(db *sql.DB, size int, log *logging.Logger) *pool.Pool[*sql.Conn] {
	factory := func() (*sql.Conn, error) {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
	return pool.New(factory, size, pool.Options[*sql.Conn]{
		Alive:   connAlive,
		Discard: func(conn *sql.Conn) { conn.Close() },
		Logger:  log,
	})
}

func connAlive(conn *sql.Conn) bool {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return conn.PingContext(ctx) == nil
}

// withConn runs fn on a pooled connection and always gives it back.
func withConn(ctx context.Context, conns ConnPool, fn func(*sql.Conn) error) error {
	conn, err := conns.AcquireContext(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conns.Release(conn)
	return fn(conn)
}
