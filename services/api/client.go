// Package api is the typed client of the placement backend's REST API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/placementcell/portal/core"
)

// ErrUnauthorized matches (errors.Is) every 401 answer, and expired tokens caught before the call.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-2xx answer of the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// StatusOf returns the status of an *Error, 0 otherwise.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Client struct {
	baseURL string
	rootURL string // baseURL without its /api suffix
	token   string
	http    *rest.Client
	now     func() time.Time
}

func NewClient(conf *core.Config) *Client {
	return &Client{
		baseURL: conf.API.BaseURL,
		rootURL: strings.TrimSuffix(conf.API.BaseURL, "/api"),
		http:    &rest.Client{HTTPClient: &http.Client{Timeout: conf.API.Timeout}},
		now:     time.Now,
	}
}

// WithToken returns a copy of the client authenticating with the bearer token.
func (c *Client) WithToken(token string) *Client {
	cc := *c
	cc.token = strings.TrimPrefix(token, "Bearer ")
	return &cc
}

// SetClock replaces the clock used by the token pre-check.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Client) BaseURL() string { return c.baseURL }
func (c *Client) RootURL() string { return c.rootURL }

// Get decodes the JSON answer of GET <base><path> into out.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	return c.do(ctx, rest.Request{Method: rest.Get, BaseURL: c.baseURL + path, QueryParams: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	return c.sendJSON(ctx, rest.Post, path, in, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out interface{}) error {
	return c.sendJSON(ctx, rest.Put, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, rest.Request{Method: rest.Delete, BaseURL: c.baseURL + path}, nil)
}

// PostForm sends a multipart form to <base><path>.
func (c *Client) PostForm(ctx context.Context, path string, form *Form, out interface{}) error {
	body, contentType, err := form.encode()
	if err != nil {
		return err
	}
	return c.do(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{"Content-Type": contentType},
		Body:    body,
	}, out)
}

func (c *Client) sendJSON(ctx context.Context, method rest.Method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.Wrap(err, "encoding request")
		}
	}
	return c.do(ctx, rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, out)
}

func (c *Client) do(ctx context.Context, req rest.Request, out interface{}) error {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers["Accept"] = "application/json"
	if c.token != "" {
		if tokenExpired(c.token, c.now()) {
			return &Error{Status: http.StatusUnauthorized, Message: "token expired"}
		}
		req.Headers["Authorization"] = "Bearer " + c.token
	}

	res, err := c.http.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.BaseURL)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newError(res)
	}
	if out == nil || strings.TrimSpace(res.Body) == "" {
		return nil
	}
	return errors.Wrapf(json.Unmarshal([]byte(res.Body), out), "decoding %s %s", req.Method, req.BaseURL)
}

func newError(res *rest.Response) *Error {
	e := &Error{Status: res.StatusCode}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw := strings.TrimSpace(res.Body)
	if err := json.Unmarshal([]byte(raw), &body); err == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
	} else if len(raw) <= 200 && !strings.HasPrefix(raw, "<") {
		e.Message = raw
	}
	if e.Message == "" {
		e.Message = http.StatusText(res.StatusCode)
	}
	return e
}

// tokenExpired reads the exp claim without verifying the signature; tokens that are not JWTs are left to the backend.
func tokenExpired(token string, now time.Time) bool {
	claims := new(jwt.StandardClaims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != 0 && now.Unix() >= claims.ExpiresAt
}

func itemPath(collection string, id int64) string {
	return fmt.Sprintf("%s/%d", collection, id)
}

func formatID(id int64) string {
	return fmt.Sprintf("%d", id)
}
