// Package executor issues the harness's HTTP calls against one POS backend
// through a single cookie-carrying session.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"pos-qa/internal/contract"
	"pos-qa/internal/model"
)

// Result is a decoded response body for a call whose status matched.
type Result struct {
	raw json.RawMessage
}

// Decode unmarshals the body into v.
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.raw, v)
}

// Map returns the body as an object, or an empty map if it is not one.
func (r *Result) Map() map[string]any {
	var m map[string]any
	if err := json.Unmarshal(r.raw, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func (r *Result) Raw() []byte { return r.raw }

// Session is a saved copy of the session credentials (the jar's cookies for
// the base URL).
type Session struct {
	cookies []*http.Cookie
}

type Client struct {
	baseURL string
	base    *url.URL
	http    *http.Client
	out     io.Writer
	log     *slog.Logger
	timeout time.Duration

	contractV  *contract.Validator
	covered    map[string]map[string]bool // method -> pathTemplate -> true
	violations []string

	calls []model.Call
}

// New returns a client with an empty cookie jar. Trace lines for every call
// are written to out.
func New(baseURL string, out io.Writer, logger *slog.Logger) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: baseURL,
		base:    u,
		http:    &http.Client{Transport: tr, Jar: jar},
		out:     out,
		log:     logger,
	}, nil
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return jar, nil
}

// WithTimeout bounds each request. Zero keeps the transport default.
func (c *Client) WithTimeout(d time.Duration) *Client { c.timeout = d; return c }

// WithContract validates every response against v and records coverage.
func (c *Client) WithContract(v *contract.Validator) *Client {
	c.contractV = v
	if c.covered == nil {
		c.covered = map[string]map[string]bool{}
	}
	return c
}

func (c *Client) BaseURL() string                     { return c.baseURL }
func (c *Client) Covered() map[string]map[string]bool { return c.covered }
func (c *Client) Violations() []string                { return c.violations }

// Calls returns every call issued so far, in order.
func (c *Client) Calls() []model.Call { return c.calls }

// ---- Session ----

// Cookie returns the value of the named cookie the jar would send to the
// base URL.
func (c *Client) Cookie(name string) (string, bool) {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

func (c *Client) SaveSession() Session {
	src := c.http.Jar.Cookies(c.base)
	saved := make([]*http.Cookie, len(src))
	for i, ck := range src {
		cp := *ck
		saved[i] = &cp
	}
	return Session{cookies: saved}
}

// RestoreSession replaces the jar wholesale with the saved credentials.
func (c *Client) RestoreSession(s Session) error {
	jar, err := newJar()
	if err != nil {
		return err
	}
	jar.SetCookies(c.base, s.cookies)
	c.http.Jar = jar
	return nil
}

// ClearSession drops every cookie.
func (c *Client) ClearSession() error {
	return c.RestoreSession(Session{})
}

// ---- Requests ----

func (c *Client) Get(ctx context.Context, path string, expect int) (*Result, int) {
	return c.Execute(ctx, http.MethodGet, path, nil, expect)
}

func (c *Client) Post(ctx context.Context, path string, body any, expect int) (*Result, int) {
	return c.Execute(ctx, http.MethodPost, path, body, expect)
}

func (c *Client) Put(ctx context.Context, path string, body any, expect int) (*Result, int) {
	return c.Execute(ctx, http.MethodPut, path, body, expect)
}

func (c *Client) Delete(ctx context.Context, path string, expect int) (*Result, int) {
	return c.Execute(ctx, http.MethodDelete, path, nil, expect)
}

// Execute sends method+path with body JSON-encoded (when non-nil).
//
// It never fails loudly: a transport error, timeout or undecodable body
// yields (nil, 0); a status other than expect yields (nil, status), even if
// a body was received; otherwise the decoded body (an empty object for an
// empty body) and the status.
func (c *Client) Execute(ctx context.Context, method, path string, body any, expect int) (*Result, int) {
	method = strings.ToUpper(method)
	call := model.Call{Method: method, Path: path, Expected: expect}
	start := time.Now()
	defer func() {
		call.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0
		c.calls = append(c.calls, call)
	}()

	fmt.Fprintf(c.out, "  → %s %s\n", method, path)

	status, data, hdr, err := c.do(ctx, method, path, body)
	if err != nil {
		call.Err = err.Error()
		fmt.Fprintf(c.out, "  → Request failed: %v\n", err)
		return nil, 0
	}
	call.Status = status
	fmt.Fprintf(c.out, "  → Status: %d\n", status)

	c.checkContract(ctx, method, path, status, hdr, data)

	if status != expect {
		fmt.Fprintf(c.out, "  → Expected %d, got %d\n", expect, status)
		fmt.Fprintf(c.out, "  → Response: %s\n", limitBody(data, 2<<10))
		return nil, status
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &Result{raw: json.RawMessage("{}")}, status
	}
	if !json.Valid(data) {
		call.Err = "response is not valid JSON"
		fmt.Fprintf(c.out, "  → Request failed: %s\n", call.Err)
		return nil, 0
	}
	return &Result{raw: data}, status
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, http.Header, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("json marshal body: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read body: %w", err)
	}
	c.log.Debug("response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(data))
	return resp.StatusCode, data, resp.Header, nil
}

func (c *Client) checkContract(ctx context.Context, method, path string, status int, hdr http.Header, data []byte) {
	if c.contractV == nil {
		return
	}
	route, mth, err := c.contractV.ValidateResponse(ctx, method, c.baseURL+path, status, hdr, data)
	if route != "" {
		if c.covered[mth] == nil {
			c.covered[mth] = map[string]bool{}
		}
		c.covered[mth][route] = true
	}
	if err != nil {
		msg := fmt.Sprintf("%s %s (%d): %v", method, path, status, err)
		c.violations = append(c.violations, msg)
		c.log.Warn("contract violation", "method", method, "path", path, "status", status, "err", err)
	}
}

func limitBody(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...[truncated]"
}
