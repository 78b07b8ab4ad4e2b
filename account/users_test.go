package account

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"

	"github.com/codetesla51/raw-https/logging"
	"github.com/codetesla51/raw-https/pool"
)

func newMockPool(t *testing.T) (*pool.Pool[*sql.Conn], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p := NewPool(db, 1, logging.Discard())
	if s := p.Stats(); s.Total != 1 {
		t.Fatalf("Expected one pooled connection, got %+v", s)
	}
	return p, mock
}

func checkReturned(t *testing.T, p *pool.Pool[*sql.Conn]) {
	t.Helper()
	if s := p.Stats(); s.Idle != 1 || s.InFlight != 0 {
		t.Errorf("Expected the connection back in the pool, got %+v", s)
	}
}

func TestUsersRegister(t *testing.T) {
	p, mock := newMockPool(t)
	users := NewUsers(p, logging.Discard())
	users.cost = bcrypt.MinCost

	mock.ExpectExec("INSERT INTO users (username, password) VALUES (?, ?)").
		WithArgs("tom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := users.Register(context.Background(), "tom", "secret"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
	checkReturned(t, p)
}

func TestUsersRegisterDuplicate(t *testing.T) {
	p, mock := newMockPool(t)
	users := NewUsers(p, logging.Discard())
	users.cost = bcrypt.MinCost

	mock.ExpectExec("INSERT INTO users (username, password) VALUES (?, ?)").
		WithArgs("tom", sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'tom'"})

	err := users.Register(context.Background(), "tom", "secret")
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("Expected ErrUserExists, got %v", err)
	}
	checkReturned(t, p)
}

func TestUsersLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		password string
		rows     *sqlmock.Rows
		expected bool
	}{
		{"match", "secret", sqlmock.NewRows([]string{"password"}).AddRow(string(hash)), true},
		{"wrong password", "guess", sqlmock.NewRows([]string{"password"}).AddRow(string(hash)), false},
		{"unknown user", "secret", sqlmock.NewRows([]string{"password"}), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, mock := newMockPool(t)
			users := NewUsers(p, logging.Discard())

			mock.ExpectQuery("SELECT password FROM users WHERE username = ?").
				WithArgs("tom").
				WillReturnRows(test.rows)

			ok, err := users.Login(context.Background(), "tom", test.password)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ok != test.expected {
				t.Errorf("Expected %v, got %v", test.expected, ok)
			}
			checkReturned(t, p)
		})
	}
}

func TestUsersLoginQueryError(t *testing.T) {
	p, mock := newMockPool(t)
	users := NewUsers(p, logging.Discard())

	mock.ExpectQuery("SELECT password FROM users WHERE username = ?").
		WithArgs("tom").
		WillReturnError(errors.New("connection reset"))

	if _, err := users.Login(context.Background(), "tom", "secret"); err == nil {
		t.Error("Expected an error")
	}
	checkReturned(t, p)
}

func TestUsersAcquireTimeout(t *testing.T) {
	p, _ := newMockPool(t)
	held, err := p.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release(held)

	users := NewUsers(p, logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = users.Login(ctx, "tom", "secret")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while the pool is exhausted, got %v", err)
	}
}

func TestPoolDropsConnectionFailingPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	p := NewPool(db, 1, logging.Discard())

	conn, err := p.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectPing().WillReturnError(errors.New("server has gone away"))
	p.Release(conn)

	if s := p.Stats(); s.Total != 0 || s.Idle != 0 {
		t.Errorf("Expected the dead connection to be dropped, got %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "localhost:3306", User: "antaresz", Password: "pw", Database: "hometown"}
	dsn := c.DSN()

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Addr != "localhost:3306" || cfg.User != "antaresz" || cfg.Passwd != "pw" || cfg.DBName != "hometown" {
		t.Errorf("Unexpected config from %q: %+v", dsn, cfg)
	}
	if !cfg.ParseTime {
		t.Error("Expected parseTime to be set")
	}
	if !cfg.ClientFoundRows {
		t.Error("Expected clientFoundRows to be set")
	}
}
