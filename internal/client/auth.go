package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/erazemk/polica/internal/model"
)

// ErrInvalidCredentials is returned by Login for a wrong username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	err := c.send(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &resp)
	if errors.Is(err, ErrSessionInvalid) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	c.setToken(resp.Token)
	c.Invalidate()
	return &resp.User, nil
}

// Logout revokes the current token on the server and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	err := c.send(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.setToken("")
	c.Invalidate()
	return err
}

// ChangePassword changes the logged-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.send(ctx, http.MethodPut, "/api/auth/password", map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
}

// NewUser is the input of CreateUser.
type NewUser struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	EmployeeID *int64 `json:"employee_id,omitempty"`
}

// ListUsers returns all active users.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	return users, c.get(ctx, collUsers, "/api/users", &users)
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, in NewUser) (*model.User, error) {
	var u model.User
	if err := c.send(ctx, http.MethodPost, "/api/users", in, &u, collUsers); err != nil {
		return nil, err
	}
	return &u, nil
}

// Health reports whether the server can reach its database.
func (c *Client) Health(ctx context.Context) error {
	var status map[string]string
	return c.fetch(ctx, "/api/health", &status)
}
