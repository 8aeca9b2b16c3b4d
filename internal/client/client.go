// Package client is the StudySphere SDK. Besides typed calls for every API endpoint it
// implements the interactive flows a front end runs on top of them: the RSVP gate, the
// attendance verification dialog, the resource list and the polling session chat.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"studysphere/internal/logger"
	"studysphere/internal/middleware"

	"github.com/google/uuid"
)

// GenericDetail is shown when a failure carries no usable detail.
const GenericDetail = "Something went wrong. Please try again."

// ErrTransport wraps network and decoding failures.
var ErrTransport = errors.New("request failed")

// APIError is a request the backend rejected. Detail is safe to show verbatim.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Detail)
}

// Notice returns the message a user should see for err.
func Notice(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var aerr *APIError
	if errors.As(err, &aerr) {
		return aerr.Detail
	}
	var serr *StateError
	if errors.As(err, &serr) {
		return serr.Error()
	}
	if errors.Is(err, ErrBusy) || errors.Is(err, ErrCannotDelete) {
		return err.Error()
	}
	return GenericDetail
}

// Identity is the signed-in user and their session token.
type Identity struct {
	Token string
	User  User
}

// Client talks to the StudySphere API. A Client returned by Login carries an Identity
// until Logout.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu       sync.RWMutex
	identity *Identity

	Sessions *SessionsAPI
	Groups   *GroupsAPI
	Messages *MessagesAPI
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for transport failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithIdentity binds the client to an existing session, e.g. a token restored from disk.
func WithIdentity(id Identity) Option {
	return func(c *Client) { c.identity = &id }
}

// New creates an anonymous client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Sessions = &SessionsAPI{c: c}
	c.Groups = &GroupsAPI{c: c}
	c.Messages = &MessagesAPI{c: c}
	return c
}

// Identity returns the bound identity, or nil when signed out.
func (c *Client) Identity() *Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

func (c *Client) viewerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return ""
	}
	return c.identity.User.ID
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return ""
	}
	return c.identity.Token
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.New().String()
	req.Header.Set(middleware.HeaderRequestID, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("read response failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("decode response failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return nil
}

func apiError(status int, data []byte) *APIError {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || strings.TrimSpace(body.Detail) == "" {
		return &APIError{Status: status, Detail: GenericDetail}
	}
	return &APIError{Status: status, Detail: body.Detail}
}
