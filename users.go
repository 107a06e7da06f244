package taskdesk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/courtregistry/taskdesk/permission"
)

type accountEnvelope struct {
	User Account `json:"user"`
}

func accountPath(format, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: account id is required", ErrInvalidRequest)
	}
	return fmt.Sprintf(format, url.PathEscape(id)), nil
}

// Users lists accounts, optionally restricted to one role.
func (c *Client) Users(ctx context.Context, role string) ([]Account, error) {
	if err := c.require(ctx, permission.UsersRead); err != nil {
		return nil, err
	}

	req := &Request{Method: http.MethodGet, Path: "/users"}
	if role = strings.TrimSpace(role); role != "" {
		req.Query = url.Values{"role": {role}}
	}

	var out struct {
		Users []Account `json:"users"`
	}
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	if out.Users == nil {
		out.Users = []Account{}
	}
	return out.Users, nil
}

// Account fetches one account.
func (c *Client) Account(ctx context.Context, id string) (*Account, error) {
	if err := c.require(ctx, permission.UsersRead); err != nil {
		return nil, err
	}
	path, err := accountPath("/users/%s", id)
	if err != nil {
		return nil, err
	}

	var out accountEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// CreateAccount creates an account. Name and PJ number are required.
func (c *Client) CreateAccount(ctx context.Context, in AccountInput) (*Account, error) {
	if err := c.require(ctx, permission.UsersManage); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.PJNumber) == "" {
		return nil, fmt.Errorf("%w: name and pjNumber are required", ErrInvalidRequest)
	}

	var out accountEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/users", JSON: in}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateAccount changes the non-empty fields of in.
func (c *Client) UpdateAccount(ctx context.Context, id string, in AccountInput) (*Account, error) {
	if err := c.require(ctx, permission.UsersManage); err != nil {
		return nil, err
	}
	path, err := accountPath("/users/%s", id)
	if err != nil {
		return nil, err
	}

	var out accountEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodPut, Path: path, JSON: in}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ToggleAccountStatus flips the account's active flag and returns the new value.
func (c *Client) ToggleAccountStatus(ctx context.Context, id string) (bool, error) {
	if err := c.require(ctx, permission.UsersManage); err != nil {
		return false, err
	}
	path, err := accountPath("/users/%s/toggle-status", id)
	if err != nil {
		return false, err
	}

	var out accountEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodPatch, Path: path}, &out); err != nil {
		return false, err
	}
	return out.User.IsActive, nil
}
