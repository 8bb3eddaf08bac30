package library

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
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const refreshPath = "/token/refresh/"

// Request is one logical API call. It survives a refresh-and-retry cycle, which is
// why the retried mark lives on it rather than on the http.Request.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header

	retried bool
}

// Retried reports whether the request has already been replayed after a refresh.
func (r *Request) Retried() bool { return r.retried }

func (r *Request) header() http.Header {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return r.Header
}

// Response is a fully read 2xx response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IssueFunc issues a request and returns either a 2xx Response or one of
// *NetworkError, *AuthError, *ServerError.
type IssueFunc func(ctx context.Context, req *Request) (*Response, error)

// RefreshFunc exchanges a refresh credential for a new access credential.
type RefreshFunc func(ctx context.Context, refreshToken string) (string, error)

// Client is the single configured request-issuing facility with a fixed base address.
// The zero-session client sends requests as-is; WithSession returns one that carries
// credentials and recovers from expired access tokens.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
	refreshing *singleflight.Group

	issue IssueFunc
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log:        log.With("component", "api"),
		refreshing: &singleflight.Group{},
	}
	c.issue = c.send
	return c
}

// BaseURL is the API root every path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// WithSession returns a client whose requests pass through the bearer interceptor and
// the refresh-and-retry decorator. redirect is called whenever the session is dropped.
func (c *Client) WithSession(session SessionContext, redirect func()) *Client {
	cp := *c
	cp.issue = WithAuthRetry(WithBearer(c.send, session), session, c.RefreshAccess, redirect)
	return &cp
}

// ------------------ Verbs ------------------

func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	return c.issue(ctx, req)
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.issue(ctx, &Request{Method: http.MethodGet, Path: path})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.issue(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.issue(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.issue(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.issue(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// ------------------ Transport ------------------

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	rid := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", rid)

	l := c.log.With("method", req.Method, "path", req.Path, "request_id", rid)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		l.Warn("request_failed", "error", err)
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		l.Warn("read_body_failed", "status", resp.StatusCode, "error", err)
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}

	l.Debug("request_completed", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds(), "retried", req.retried)

	he := HTTPError{Method: req.Method, Path: req.Path, Status: resp.StatusCode, Payload: data}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{he}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &ServerError{he}
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// RefreshAccess calls the token-refresh endpoint without credentials. Concurrent callers
// holding the same refresh token share one in-flight call.
func (c *Client) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	v, err, shared := c.refreshing.Do(refreshToken, func() (any, error) {
		resp, err := c.send(ctx, &Request{
			Method: http.MethodPost,
			Path:   refreshPath,
			Body:   refreshRequest{Refresh: refreshToken},
		})
		if err != nil {
			return "", err
		}
		var out refreshResponse
		if err := resp.Decode(&out); err != nil {
			return "", err
		}
		if out.Access == "" {
			return "", fmt.Errorf("refresh response has no access token")
		}
		return out.Access, nil
	})
	if err != nil {
		c.log.Warn("refresh_failed", "error", err, "shared", shared)
		return "", err
	}
	c.log.Debug("refresh_succeeded", "shared", shared)
	return v.(string), nil
}

// ------------------ Interceptors ------------------

// WithBearer attaches the persisted access credential as a bearer token. Without a
// token the request goes out unauthenticated and the backend decides.
func WithBearer(next IssueFunc, session SessionContext) IssueFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if token := session.AccessToken(); token != "" {
			req.header().Set("Authorization", "Bearer "+token)
		} else if req.Header != nil {
			req.Header.Del("Authorization")
		}
		return next(ctx, req)
	}
}

// WithAuthRetry recovers from a 401 once per request: it refreshes the access token,
// stores it and replays the request. Without a refresh token, or when the refresh
// fails, the session is cleared and redirect is called. A replayed request that
// fails again is returned as-is.
func WithAuthRetry(next IssueFunc, session SessionContext, refresh RefreshFunc, redirect func()) IssueFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		resp, err := next(ctx, req)
		var authErr *AuthError
		if err == nil || req.retried || !errors.As(err, &authErr) {
			return resp, err
		}
		req.retried = true

		refreshToken := session.RefreshToken()
		if refreshToken == "" {
			endSession(session, redirect)
			return nil, err
		}

		access, rerr := refresh(ctx, refreshToken)
		if rerr != nil {
			endSession(session, redirect)
			return nil, fmt.Errorf("refresh session: %w", rerr)
		}
		if serr := session.SetAccess(access); serr != nil {
			endSession(session, redirect)
			return nil, fmt.Errorf("store refreshed token: %w", serr)
		}

		req.header().Set("Authorization", "Bearer "+access)
		return next(ctx, req)
	}
}

func endSession(session SessionContext, redirect func()) {
	_ = session.Clear()
	if redirect != nil {
		redirect()
	}
}
