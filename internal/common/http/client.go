// Package http builds the outbound HTTP clients used by processors and
// outputs and performs single request/response exchanges with them.
// Nothing here retries: a failed exchange is reported to the caller as is.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"pubsub2inbox/internal/common/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxErrorBody bounds the response excerpt kept in downstream errors
const maxErrorBody = 512

// ClientConfig tunes the shared outbound client
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	// Transport replaces the pooled transport, e.g. with an oauth2 transport
	Transport http.RoundTripper
}

// DefaultClientConfig is a 30 second timeout over a pooled transport
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

type ClientOption func(*ClientConfig)

// WithTimeout bounds each request. Zero or less keeps the default.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

// NewHTTPClient builds the client shared by every stage of a pipeline
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := DefaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := cfg.Transport
	if transport == nil {
		pooled := http.DefaultTransport.(*http.Transport).Clone()
		pooled.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		pooled.IdleConnTimeout = cfg.IdleConnTimeout
		transport = pooled
	}
	return &http.Client{Timeout: cfg.Timeout, Transport: transport}
}

// Request describes one outbound call
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	// ParseJSON decodes JSON response bodies into Response.Body
	ParseJSON bool
}

// Response represents an HTTP response with parsed body
type Response struct {
	StatusCode int
	Headers    map[string]string
	// Body is the decoded JSON value, or the body text
	Body     interface{}
	RawBody  []byte
	Duration time.Duration
}

// Do performs req with client. Transport failures are connection errors and
// non-2xx answers are downstream errors; in the latter case the response is
// returned alongside the error.
func Do(ctx context.Context, client *http.Client, req *Request) (*Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid request %s %s: %v", method, req.URL, err))
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("%s %s failed", method, req.URL), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectionError("failed to read response body", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       string(raw),
		RawBody:    raw,
		Duration:   time.Since(start),
	}
	if req.ParseJSON {
		response.Body = parseBody(raw)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, errors.DownstreamError(
			fmt.Sprintf("%s %s returned HTTP %d: %s", method, req.URL, resp.StatusCode, excerpt(raw)),
			resp.StatusCode, nil)
	}
	return response, nil
}

// parseBody decodes JSON, falling back to the body text
func parseBody(body []byte) interface{} {
	if len(body) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func excerpt(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
