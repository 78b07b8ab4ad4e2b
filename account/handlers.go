package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/codetesla51/raw-https/logging"
	"github.com/codetesla51/raw-https/server"
)

const textPlain = "text/plain; charset=utf-8"

// UserService is what the account routes need from Users.
type UserService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (bool, error)
}

// PostService is what the post routes need from Posts.
type PostService interface {
	Create(ctx context.Context, upid int64, title, content, postType string) (int64, error)
	Update(ctx context.Context, id int64, title, content string) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Post, error)
	List(ctx context.Context) ([]Post, error)
}

// Handlers adapts the services to route handlers.
type Handlers struct {
	Users UserService
	Posts PostService
	Log   *logging.Logger
	// Timeout bounds each handler's database work, including the wait for
	// a pooled connection. Zero waits indefinitely.
	Timeout time.Duration
}

// Routes registers every account and post route on r.
func (h *Handlers) Routes(r *server.Router) {
	r.Register("/register", h.register)
	r.Register("/login", h.login)
	r.Register("/posts/create", h.createPost)
	r.Register("/posts/update", h.updatePost)
	r.Register("/posts/delete", h.deletePost)
	r.Register("/posts/get", h.getPost)
	r.Register("/posts/list", h.listPosts)
}

func (h *Handlers) context() (context.Context, context.CancelFunc) {
	if h.Timeout > 0 {
		return context.WithTimeout(context.Background(), h.Timeout)
	}
	return context.WithCancel(context.Background())
}

func text(out *bytes.Buffer, status int, msg string) {
	out.Write(server.CreateResponseBytes(status, textPlain, []byte(msg)))
}

func writeJSON(out *bytes.Buffer, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		text(out, 500, "Internal server error occurred")
		return
	}
	out.Write(server.CreateResponseBytes(status, "application/json", data))
}

func credentials(body string, out *bytes.Buffer) (string, string, bool) {
	fields, err := parseFields(body)
	if err != nil {
		text(out, 400, "Invalid JSON: "+err.Error())
		return "", "", false
	}
	username, password := fields["username"], fields["password"]
	if username == "" || password == "" {
		text(out, 400, "Missing username or password")
		return "", "", false
	}
	return username, password, true
}

func (h *Handlers) register(body string, out *bytes.Buffer) {
	username, password, ok := credentials(body, out)
	if !ok {
		return
	}
	ctx, cancel := h.context()
	defer cancel()

	switch err := h.Users.Register(ctx, username, password); {
	case err == nil:
		h.Log.Infof("Registered user %s", username)
		text(out, 200, "Welcome, "+username+"!")
	case errors.Is(err, ErrUserExists):
		text(out, 409, "Sorry, that username is already taken.")
	default:
		text(out, 500, "Sorry, something went wrong while registering.")
	}
}

func (h *Handlers) login(body string, out *bytes.Buffer) {
	username, password, ok := credentials(body, out)
	if !ok {
		return
	}
	ctx, cancel := h.context()
	defer cancel()

	match, err := h.Users.Login(ctx, username, password)
	switch {
	case err != nil:
		text(out, 500, "Sorry, something went wrong while logging in.")
	case match:
		text(out, 200, "Login successful")
	default:
		text(out, 401, "Login failed")
	}
}

type postRequest struct {
	ID       int64  `json:"id"`
	UpID     int64  `json:"upid"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	PostType string `json:"post_type"`
}

func decodePost(body string, out *bytes.Buffer) (postRequest, bool) {
	var req postRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		text(out, 400, "Invalid JSON: "+err.Error())
		return req, false
	}
	return req, true
}

func (h *Handlers) createPost(body string, out *bytes.Buffer) {
	req, ok := decodePost(body, out)
	if !ok {
		return
	}
	if req.Title == "" {
		text(out, 400, "Missing title")
		return
	}
	ctx, cancel := h.context()
	defer cancel()

	id, err := h.Posts.Create(ctx, req.UpID, req.Title, req.Content, req.PostType)
	if err != nil {
		text(out, 500, "Failed to create post")
		return
	}
	writeJSON(out, 201, map[string]int64{"id": id})
}

func (h *Handlers) updatePost(body string, out *bytes.Buffer) {
	req, ok := decodePost(body, out)
	if !ok {
		return
	}
	ctx, cancel := h.context()
	defer cancel()
	h.postResult(out, h.Posts.Update(ctx, req.ID, req.Title, req.Content), "Post updated")
}

func (h *Handlers) deletePost(body string, out *bytes.Buffer) {
	req, ok := decodePost(body, out)
	if !ok {
		return
	}
	ctx, cancel := h.context()
	defer cancel()
	h.postResult(out, h.Posts.Delete(ctx, req.ID), "Post deleted")
}

func (h *Handlers) postResult(out *bytes.Buffer, err error, success string) {
	switch {
	case err == nil:
		text(out, 200, success)
	case errors.Is(err, ErrPostNotFound):
		text(out, 404, "Post not found")
	default:
		text(out, 500, "Internal server error occurred")
	}
}

func (h *Handlers) getPost(body string, out *bytes.Buffer) {
	req, ok := decodePost(body, out)
	if !ok {
		return
	}
	ctx, cancel := h.context()
	defer cancel()

	post, err := h.Posts.Get(ctx, req.ID)
	if err != nil {
		h.postResult(out, err, "")
		return
	}
	writeJSON(out, 200, post)
}

func (h *Handlers) listPosts(body string, out *bytes.Buffer) {
	ctx, cancel := h.context()
	defer cancel()

	posts, err := h.Posts.List(ctx)
	if err != nil {
		text(out, 500, "Internal server error occurred")
		return
	}
	writeJSON(out, 200, posts)
}
