package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/codetesla51/raw-https/logging"
)

func TestPostsCreate(t *testing.T) {
	p, mock := newMockPool(t)
	posts := NewPosts(p, logging.Discard())

	mock.ExpectExec("INSERT INTO posts (upid, title, content, post_type) VALUES (?, ?, ?, ?)").
		WithArgs(int64(7), "Hi", "first", "blog").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := posts.Create(context.Background(), 7, "Hi", "first", "blog")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != 42 {
		t.Errorf("Expected id 42, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
	checkReturned(t, p)
}

func TestPostsUpdateAndDelete(t *testing.T) {
	p, mock := newMockPool(t)
	posts := NewPosts(p, logging.Discard())

	mock.ExpectExec("UPDATE posts SET title = ?, content = ? WHERE id = ?").
		WithArgs("New", "body", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM posts WHERE id = ?").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM posts WHERE id = ?").
		WithArgs(int64(3)).
		WillReturnError(errors.New("lock wait timeout"))

	if err := posts.Update(context.Background(), 3, "New", "body"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := posts.Delete(context.Background(), 9); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("Expected ErrPostNotFound, got %v", err)
	}
	err := posts.Delete(context.Background(), 3)
	if err == nil || errors.Is(err, ErrPostNotFound) {
		t.Errorf("Expected a database error, got %v", err)
	}
	checkReturned(t, p)
}

func TestPostsGetAndList(t *testing.T) {
	p, mock := newMockPool(t)
	posts := NewPosts(p, logging.Discard())
	created := time.Date(2024, 10, 24, 12, 0, 0, 0, time.UTC)
	columns := []string{"id", "upid", "title", "content", "post_type", "created_at"}

	mock.ExpectQuery("SELECT id, upid, title, content, post_type, created_at FROM posts WHERE id = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(1, 7, "Hi", "first", "blog", created))
	mock.ExpectQuery("SELECT id, upid, title, content, post_type, created_at FROM posts WHERE id = ?").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery("SELECT id, upid, title, content, post_type, created_at FROM posts ORDER BY id").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, 7, "Hi", "first", "blog", created).
			AddRow(2, 7, "Again", "second", "note", created))

	post, err := posts.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if post.Title != "Hi" || post.UpID != 7 || !post.CreatedAt.Equal(created) {
		t.Errorf("Unexpected post %+v", post)
	}

	if _, err := posts.Get(context.Background(), 2); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("Expected ErrPostNotFound, got %v", err)
	}

	all, err := posts.List(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(all) != 2 || all[1].PostType != "note" {
		t.Errorf("Unexpected posts %+v", all)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
	checkReturned(t, p)
}
