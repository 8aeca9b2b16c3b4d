package client

import (
	"context"
	"net/http"
	"strings"

	"studysphere/internal/studysession"
)

// MessagesAPI covers session chat.
type MessagesAPI struct {
	c *Client
}

// GetSessionMessages lists a session's messages, oldest first.
func (a *MessagesAPI) GetSessionMessages(ctx context.Context, id int64) ([]Message, error) {
	var out []Message
	if err := a.c.do(ctx, http.MethodGet, sessionPath(id, "/messages"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendSessionMessage posts text to a session's chat and returns the stored message.
func (a *MessagesAPI) SendSessionMessage(ctx context.Context, id int64, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text", "Message cannot be empty.")
	}

	var m Message
	req := studysession.SendMessageRequest{Text: text}
	if err := a.c.do(ctx, http.MethodPost, sessionPath(id, "/messages"), req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
