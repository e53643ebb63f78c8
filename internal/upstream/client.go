// Package upstream is the HTTP client the proxy uses to call the configured
// provider. A proxy sees sustained traffic to a single upstream host, so the
// transport pools idle connections generously instead of dialing fresh per
// request.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/digitallysavvy/anthropic-proxy/internal/config"
)

// sharedTransport is reused across every Client so idle connections to the
// upstream provider are pooled across requests instead of per-client.
var sharedTransport = &http.Transport{
	MaxIdleConns:        500,
	MaxIdleConnsPerHost: 100,
	IdleConnTimeout:     120 * time.Second,
}

// DefaultHTTPClient is the shared client used when no per-request timeout override is needed.
var DefaultHTTPClient = &http.Client{
	Transport: sharedTransport,
}

// Client composes the configured provider's base URL and auth headers onto
// every outbound call.
type Client struct {
	httpClient *http.Client
	cfg        *config.ProviderConfig
}

// New builds a Client bound to the given provider configuration.
func New(cfg *config.ProviderConfig) *Client {
	return &Client{httpClient: DefaultHTTPClient, cfg: cfg}
}

// composeHeaders applies the authentication header and every configured
// extra header onto req. Any Authorization the client sent never reaches
// here; the proxy always substitutes its own credentials.
func (c *Client) composeHeaders(req *http.Request, contentType string) {
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.AuthHeaderName == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	} else {
		req.Header.Set(c.cfg.AuthHeaderName, c.cfg.APIKey)
	}
	for k, v := range c.cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}
}

// DoJSON POSTs a JSON body to path (relative to the configured base URL) and
// decodes a non-streaming JSON response into result. The caller is
// responsible for checking result/err; a non-2xx response is returned as an
// *HTTPError so the caller can translate it into a proxyerr.UpstreamHTTP.
func (c *Client) DoJSON(ctx context.Context, path string, body any, result any) error {
	resp, raw, err := c.do(ctx, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &HTTPError{Status: resp.StatusCode, Body: excerpt(raw)}
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &ParseError{Cause: err}
	}
	return nil
}

// DoRaw POSTs a pre-serialized body verbatim, used for Anthropic-native
// passthrough where the outbound payload must stay byte-equivalent to what
// the client sent apart from auth headers. The
// caller must close resp.Body. streaming controls the Accept header only;
// the response is always returned unread so the caller can choose to stream
// or buffer it.
func (c *Client) DoRaw(ctx context.Context, path string, rawBody []byte, streaming bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(rawBody))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	c.composeHeaders(req, "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoStream POSTs a JSON body to path and returns the raw *http.Response for
// the caller to stream-read. The caller must close resp.Body. A non-2xx
// response has its body already buffered and returned as an *HTTPError.
func (c *Client) DoStream(ctx context.Context, path string, body any) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	c.composeHeaders(req, "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, &HTTPError{Status: resp.StatusCode, Body: excerpt(raw)}
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("build upstream request: %w", err)
	}
	c.composeHeaders(req, "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("read upstream response: %w", err)
	}
	// Re-wrap the body so callers that expect resp.Body to be readable (none
	// currently do after DoJSON, but keeps the signature honest) still can.
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp, raw, nil
}

// HTTPError is returned when the upstream responds with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream HTTP %d: %s", e.Status, e.Body)
}

// ParseError is returned when a 2xx upstream response body fails to decode.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode upstream response: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

func excerpt(body []byte) string {
	const max = 500
	if len(body) > max {
		return string(body[:max]) + "...(truncated)"
	}
	return string(body)
}
