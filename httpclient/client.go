package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/praxislearn/authkit/logger"
)

// Client is the credentialed HTTP transport. The cookie jar holds the
// ambient session credential; it is written only by backend Set-Cookie
// responses, never by the client itself.
type Client struct {
	httpClient *http.Client
	bareClient *http.Client
	config     Config
	log        *logger.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for transport diagnostics.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log.WithComponent("httpclient")
	}
}

// WithTracerProvider enables a client span per request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer("github.com/praxislearn/authkit/httpclient")
	}
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		// bareClient shares the transport but carries no jar, for
		// requests that must not attach session credentials.
		bareClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config: cfg,
		log:    logger.NewDefault("authkit").WithComponent("httpclient"),
	}

	if !cfg.SuppressCredentials {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Request describes a single HTTP request.
type Request struct {
	Method string
	Path   string
	Body   any
	// Headers are request-specific headers, overriding client defaults.
	Headers map[string]string
	// Query holds query parameters.
	Query map[string]string
	// SuppressCredentials sends this request without the cookie jar.
	SuppressCredentials bool
}

// Response is a completed HTTP response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// IsSuccess reports whether the response has a 2xx status code.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsEmpty reports whether the response carries no body (e.g. 204).
func (r *Response) IsEmpty() bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// Unwrap returns the underlying *http.Client for advanced use cases.
func (c *Client) Unwrap() *http.Client {
	return c.httpClient
}

// Do executes an HTTP request and returns the complete response.
// Non-2xx responses return both the response and a classified *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.Start(ctx, req.Method+" "+req.Path,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.path", req.Path),
			))
		defer span.End()
	}

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	sender := c.httpClient
	if req.SuppressCredentials {
		sender = c.bareClient
	}

	resp, err := sender.Do(httpReq)
	if err != nil {
		connErr := NewConnectionError(httpReq.URL.String(), err)
		c.log.Error("backend unreachable", logger.Fields(
			logger.FieldMethod, req.Method,
			logger.FieldURL, httpReq.URL.String(),
			logger.FieldError, err.Error(),
		))
		recordSpanError(span, connErr)
		return nil, connErr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		connErr := NewConnectionError(httpReq.URL.String(), fmt.Errorf("read response body: %w", err))
		recordSpanError(span, connErr)
		return nil, connErr
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
	}

	if span != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}

	if classErr := ClassifyStatus(resp.StatusCode, body); classErr != nil {
		classErr.URL = httpReq.URL.String()
		c.logFailure(req, classErr, time.Since(start))
		recordSpanError(span, classErr)
		return result, classErr
	}

	c.log.Debug("request completed", logger.Fields(
		logger.FieldMethod, req.Method,
		logger.FieldURL, httpReq.URL.String(),
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return result, nil
}

// logFailure emits diagnostics with the severity split the auth flows
// rely on: expected auth refusals stay quiet, server errors are loud.
func (c *Client) logFailure(req Request, err *Error, elapsed time.Duration) {
	fields := logger.Fields(
		logger.FieldMethod, req.Method,
		logger.FieldURL, err.URL,
		logger.FieldStatus, err.StatusCode,
		logger.FieldDuration, elapsed.Milliseconds(),
		logger.FieldError, err.Message,
	)
	switch err.Code {
	case ErrCodeAuth:
		// Expected negative case for unauthenticated probes.
		c.log.Debug("auth required", fields)
	case ErrCodeServer:
		c.log.Error("server error", fields)
	default:
		c.log.Warn("request rejected", fields)
	}
}

// buildRequest constructs an *http.Request from the client config and request.
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := req.Path
	if c.config.BaseURL != "" && !strings.HasPrefix(req.Path, "http://") && !strings.HasPrefix(req.Path, "https://") {
		url = strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, &Error{Code: ErrCodeDecode, Message: fmt.Sprintf("encode body: %v", err), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, &Error{Code: ErrCodeDecode, Message: fmt.Sprintf("create request: %v", err), Err: err}
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	return httpReq, nil
}

// encodeBody converts a body value into an io.Reader and content type.
func encodeBody(body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	switch v := body.(type) {
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// flattenHeaders converts multi-value headers to single-value.
func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}

func recordSpanError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
