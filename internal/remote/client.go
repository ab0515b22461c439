// Package remote is the HTTP client for the Alpacon API.
//
// Every call targets https://<workspace>.<region>.alpacon.io/api/... (the
// base URL is a configurable template) with a bearer token, and returns
// either the decoded JSON body or a typed *Error.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"golang.org/x/oauth2"

	"alpacon-mcp/internal/metrics"
	"alpacon-mcp/pkg/logging"
	pkgstrings "alpacon-mcp/pkg/strings"
)

const (
	// DefaultBaseURLTemplate is used when Options.BaseURLTemplate is empty.
	DefaultBaseURLTemplate = "https://{workspace}.{region}.alpacon.io"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 10 << 20
	maxErrorBodyLen  = 2048
)

// Target identifies the workspace a call is made against and the token used.
type Target struct {
	Region    string
	Workspace string
	Token     string
}

// Call describes one remote request.
type Call struct {
	Method   string
	Target   Target
	Endpoint string // e.g. "/api/servers/servers/"
	Params   url.Values
	Body     interface{}
}

// Options configures a Client.
type Options struct {
	BaseURLTemplate string
	Timeout         time.Duration
	UserAgent       string

	// DNSCacheRefresh enables the caching resolver when positive.
	DNSCacheRefresh time.Duration

	// Transport overrides the base round tripper (used by tests).
	Transport http.RoundTripper

	Metrics *metrics.Metrics
}

// Client calls the Alpacon API. It is safe for concurrent use.
type Client struct {
	baseURLTemplate string
	timeout         time.Duration
	userAgent       string
	base            http.RoundTripper
	metrics         *metrics.Metrics

	resolver *dnscache.Resolver
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		baseURLTemplate: opts.BaseURLTemplate,
		timeout:         opts.Timeout,
		userAgent:       opts.UserAgent,
		metrics:         opts.Metrics,
		stopCh:          make(chan struct{}),
	}
	if c.baseURLTemplate == "" {
		c.baseURLTemplate = DefaultBaseURLTemplate
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}

	c.base = opts.Transport
	if c.base == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if opts.DNSCacheRefresh > 0 {
			c.resolver = &dnscache.Resolver{}
			tr.DialContext = c.dialContextWithCache
			go c.refreshDNS(opts.DNSCacheRefresh)
		}
		c.base = tr
	}
	return c
}

// Close stops the DNS refresh loop.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Client) refreshDNS(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.resolver.Refresh(true)
			logging.Debug("Remote", "DNS cache refreshed")
		}
	}
}

// dialContextWithCache resolves through the cached resolver and tries each
// address in turn.
func (c *Client) dialContextWithCache(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	ips, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no IP addresses found", Name: host}
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	var lastErr error
	for _, ip := range ips {
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// BaseURL expands the base URL template for a target.
func (c *Client) BaseURL(region, workspace string) string {
	r := strings.NewReplacer("{workspace}", workspace, "{region}", region)
	return strings.TrimRight(r.Replace(c.baseURLTemplate), "/")
}

// Do executes call and returns the decoded JSON body. An empty body
// (e.g. 204 No Content) decodes to nil.
func (c *Client) Do(ctx context.Context, call Call) (interface{}, error) {
	body, _, err := c.roundTrip(ctx, call)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var out interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{
			Kind:   KindDecode,
			Method: call.Method,
			URL:    call.Endpoint,
			Body:   truncate(string(body)),
			Err:    fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return out, nil
}

// Download executes call and returns the raw response body and content type.
func (c *Client) Download(ctx context.Context, call Call) ([]byte, string, error) {
	return c.roundTrip(ctx, call)
}

// Get is a convenience wrapper for GET requests.
func (c *Client) Get(ctx context.Context, t Target, endpoint string, params url.Values) (interface{}, error) {
	return c.Do(ctx, Call{Method: http.MethodGet, Target: t, Endpoint: endpoint, Params: params})
}

// Post is a convenience wrapper for POST requests.
func (c *Client) Post(ctx context.Context, t Target, endpoint string, body interface{}) (interface{}, error) {
	return c.Do(ctx, Call{Method: http.MethodPost, Target: t, Endpoint: endpoint, Body: body})
}

// Put is a convenience wrapper for PUT requests.
func (c *Client) Put(ctx context.Context, t Target, endpoint string, body interface{}) (interface{}, error) {
	return c.Do(ctx, Call{Method: http.MethodPut, Target: t, Endpoint: endpoint, Body: body})
}

// Patch is a convenience wrapper for PATCH requests.
func (c *Client) Patch(ctx context.Context, t Target, endpoint string, body interface{}) (interface{}, error) {
	return c.Do(ctx, Call{Method: http.MethodPatch, Target: t, Endpoint: endpoint, Body: body})
}

// Delete is a convenience wrapper for DELETE requests.
func (c *Client) Delete(ctx context.Context, t Target, endpoint string) (interface{}, error) {
	return c.Do(ctx, Call{Method: http.MethodDelete, Target: t, Endpoint: endpoint})
}

func (c *Client) roundTrip(ctx context.Context, call Call) ([]byte, string, error) {
	start := time.Now()
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	u := c.BaseURL(call.Target.Region, call.Target.Workspace) + "/" + strings.TrimLeft(call.Endpoint, "/")
	if len(call.Params) > 0 {
		u += "?" + call.Params.Encode()
	}

	var reqBody io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: call.Target.Token, TokenType: "Bearer"}),
			Base:   c.base,
		},
	}

	logging.Debug("Remote", "%s %s", method, call.Endpoint)

	resp, err := httpClient.Do(req)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = KindTimeout
		}
		c.metrics.RecordRemoteRequest(method, string(kind), time.Since(start))
		return nil, "", &Error{Kind: kind, Method: method, URL: call.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = KindTimeout
		}
		c.metrics.RecordRemoteRequest(method, string(kind), time.Since(start))
		return nil, "", &Error{Kind: kind, Method: method, URL: call.Endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.RecordRemoteRequest(method, string(KindStatus), time.Since(start))
		return nil, "", &Error{
			Kind:       KindStatus,
			Method:     method,
			URL:        call.Endpoint,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body)),
		}
	}

	if len(body) > maxResponseBytes {
		c.metrics.RecordRemoteRequest(method, string(KindTooLarge), time.Since(start))
		return nil, "", &Error{
			Kind:   KindTooLarge,
			Method: method,
			URL:    call.Endpoint,
			Err:    fmt.Errorf("response exceeds %d MiB", maxResponseBytes>>20),
		}
	}

	c.metrics.RecordRemoteRequest(method, "ok", time.Since(start))
	return body, resp.Header.Get("Content-Type"), nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string) string {
	return pkgstrings.Truncate(s, maxErrorBodyLen)
}
