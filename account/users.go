package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"

	"github.com/codetesla51/raw-https/logging"
)

// ErrUserExists is returned when registering a taken username.
var ErrUserExists = errors.New("username already taken")

const mysqlDuplicateEntry = 1062

// Users stores accounts with bcrypt password hashes.
type Users struct {
	conns ConnPool
	log   *logging.Logger
	cost  int
}

func NewUsers(conns ConnPool, log *logging.Logger) *Users {
	return &Users{conns: conns, log: log, cost: bcrypt.DefaultCost}
}

// Register creates an account.
func (u *Users) Register(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return withConn(ctx, u.conns, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			"INSERT INTO users (username, password) VALUES (?, ?)", username, string(hash))
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return ErrUserExists
		}
		if err != nil {
			u.log.Errorf("Registration failed for %s: %v", username, err)
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

// Login reports whether password matches the stored hash for username.
// Unknown users and wrong passwords both yield false with a nil error.
func (u *Users) Login(ctx context.Context, username, password string) (bool, error) {
	var stored string
	err := withConn(ctx, u.conns, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT password FROM users WHERE username = ?", username).Scan(&stored)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		u.log.Errorf("Login failed for %s: %v", username, err)
		return false, fmt.Errorf("query user: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, nil
}
