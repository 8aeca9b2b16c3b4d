package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GroupsAPI covers /api/groups
type GroupsAPI struct {
	c *Client
}

// groupList decodes either a plain array or a paginated {"results": [...]} body.
type groupList []Group

func (l *groupList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, (*[]Group)(l))
	}
	var page struct {
		Results []Group `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return err
	}
	*l = page.Results
	return nil
}

// GetAll lists the groups visible to the current user.
func (a *GroupsAPI) GetAll(ctx context.Context) ([]Group, error) {
	var out groupList
	if err := a.c.do(ctx, http.MethodGet, "/api/groups", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return []Group{}, nil
	}
	return out, nil
}

// Get fetches one group.
func (a *GroupsAPI) Get(ctx context.Context, id int64) (*Group, error) {
	var g Group
	if err := a.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/groups/%d", id), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Join adds the current user to a group and returns the XP earned.
func (a *GroupsAPI) Join(ctx context.Context, id int64) (int, error) {
	var resp struct {
		XPEarned int `json:"xp_earned"`
	}
	if err := a.c.do(ctx, http.MethodPost, fmt.Sprintf("/api/groups/%d/join", id), nil, &resp); err != nil {
		return 0, err
	}
	return resp.XPEarned, nil
}

// Leave removes the current user from a group.
func (a *GroupsAPI) Leave(ctx context.Context, id int64) error {
	return a.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/groups/%d/leave", id), nil, nil)
}
