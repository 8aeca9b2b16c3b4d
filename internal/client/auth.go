package client

import (
	"context"
	"net/http"

	"studysphere/internal/auth"
)

// RegisterInput is the sign-up form
type RegisterInput = auth.RegisterRequest

// Register creates an account and returns a client signed in as the new user.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*Client, error) {
	var resp auth.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &resp); err != nil {
		return nil, err
	}
	return c.bind(resp), nil
}

// Login starts a session and returns a client bound to it. The receiver stays anonymous.
func (c *Client) Login(ctx context.Context, login, password string) (*Client, error) {
	if login == "" || password == "" {
		return nil, &ValidationError{Fields: map[string]string{
			"login": "Username and password are required.",
		}}
	}

	var resp auth.AuthResponse
	req := auth.LoginRequest{Login: login, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return c.bind(resp), nil
}

func (c *Client) bind(resp auth.AuthResponse) *Client {
	id := Identity{Token: resp.Token}
	if resp.User != nil {
		id.User = *resp.User
	}
	return New(c.baseURL, WithHTTPClient(c.http), WithLogger(c.logger), WithIdentity(id))
}

// Me fetches the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the server session and clears the bound identity. The identity is
// cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)

	c.mu.Lock()
	c.identity = nil
	c.mu.Unlock()

	return err
}
