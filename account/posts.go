package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codetesla51/raw-https/logging"
)

var ErrPostNotFound = errors.New("post not found")

type Post struct {
	ID        int64     `json:"id"`
	UpID      int64     `json:"upid"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	PostType  string    `json:"post_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Posts is the blog post table.
type Posts struct {
	conns ConnPool
	log   *logging.Logger
}

func NewPosts(conns ConnPool, log *logging.Logger) *Posts {
	return &Posts{conns: conns, log: log}
}

// Create inserts a post and returns its id.
func (p *Posts) Create(ctx context.Context, upid int64, title, content, postType string) (int64, error) {
	var id int64
	err := withConn(ctx, p.conns, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"INSERT INTO posts (upid, title, content, post_type) VALUES (?, ?, ?, ?)",
			upid, title, content, postType)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		p.log.Errorf("Failed to create post: %v", err)
		return 0, fmt.Errorf("create post: %w", err)
	}
	return id, nil
}

// Update replaces a post's title and content.
func (p *Posts) Update(ctx context.Context, id int64, title, content string) error {
	return p.execOne(ctx, "update",
		"UPDATE posts SET title = ?, content = ? WHERE id = ?", title, content, id)
}

func (p *Posts) Delete(ctx context.Context, id int64) error {
	return p.execOne(ctx, "delete", "DELETE FROM posts WHERE id = ?", id)
}

// execOne runs a statement that must touch exactly one row.
func (p *Posts) execOne(ctx context.Context, op, query string, args ...any) error {
	err := withConn(ctx, p.conns, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPostNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrPostNotFound) {
		p.log.Errorf("Failed to %s post: %v", op, err)
		return fmt.Errorf("%s post: %w", op, err)
	}
	return err
}

const postColumns = "id, upid, title, content, post_type, created_at"

func (p *Posts) Get(ctx context.Context, id int64) (Post, error) {
	var post Post
	err := withConn(ctx, p.conns, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id)
		return scanPost(row, &post)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		p.log.Errorf("Failed to get post: %v", err)
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (p *Posts) List(ctx context.Context) ([]Post, error) {
	posts := []Post{}
	err := withConn(ctx, p.conns, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT "+postColumns+" FROM posts ORDER BY id")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var post Post
			if err := scanPost(rows, &post); err != nil {
				return err
			}
			posts = append(posts, post)
		}
		return rows.Err()
	})
	if err != nil {
		p.log.Errorf("Failed to get all posts: %v", err)
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner, post *Post) error {
	return s.Scan(&post.ID, &post.UpID, &post.Title, &post.Content, &post.PostType, &post.CreatedAt)
}
