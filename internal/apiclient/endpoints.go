package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// User is the backend account attached to a set of credentials.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User    User   `json:"user"`
	Message string `json:"message"`
}

// Login authenticates against the backend and replaces creds with the
// cookies it issues. A 401 here is a plain HTTPError, never a refresh.
func (c *Client) Login(ctx context.Context, creds *Credentials, username, password string) (User, error) {
	resp, err := c.send(ctx, nil, Request{
		Method: http.MethodPost,
		Path:   LoginPath,
		Body:   loginRequest{Username: username, Password: password},
	})
	if err != nil {
		return User{}, err
	}
	out, err := resp.result(Request{Method: http.MethodPost, Path: LoginPath})
	if err != nil {
		return User{}, err
	}
	var payload loginResponse
	if err := json.Unmarshal(out.Body, &payload); err != nil {
		return User{}, fmt.Errorf("apiclient: decode login response: %w", err)
	}
	creds.Replace(resp.cookies)
	return payload.User, nil
}

// Logout asks the backend to drop its cookies and clears creds either way.
func (c *Client) Logout(ctx context.Context, creds *Credentials) error {
	defer creds.Clear()
	_, err := c.send(ctx, creds.Cookies(), Request{Method: http.MethodPost, Path: LogoutPath})
	return err
}

// Me returns the user owning creds.
func (c *Client) Me(ctx context.Context, creds *Credentials) (User, error) {
	var user User
	err := c.GetJSON(ctx, creds, MePath, nil, &user)
	return user, err
}

// Health checks that the backend answers.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.GetJSON(ctx, nil, HealthPath, nil, &out)
	return out, err
}

// GetJSON performs a GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, creds *Credentials, path string, query url.Values, out any) error {
	return c.doJSON(ctx, creds, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// PostJSON performs a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, creds *Credentials, path string, body, out any) error {
	return c.doJSON(ctx, creds, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// PutJSON performs a PUT with a JSON body.
func (c *Client) PutJSON(ctx context.Context, creds *Credentials, path string, body, out any) error {
	return c.doJSON(ctx, creds, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Delete performs a DELETE, ignoring any response body.
func (c *Client) Delete(ctx context.Context, creds *Credentials, path string) error {
	return c.doJSON(ctx, creds, Request{Method: http.MethodDelete, Path: path}, nil)
}

func (c *Client) doJSON(ctx context.Context, creds *Credentials, req Request, out any) error {
	resp, err := c.Do(ctx, creds, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}
