package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// RequestOption configures a single request.
type RequestOption func(*Request)

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// WithQueryParam adds a query parameter to the request.
func WithQueryParam(key, value string) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = make(map[string]string)
		}
		r.Query[key] = value
	}
}

// WithoutCredentials sends the request without the ambient session cookie.
func WithoutCredentials() RequestOption {
	return func(r *Request) {
		r.SuppressCredentials = true
	}
}

// Get performs a GET request and decodes the JSON response into type T.
func Get[T any](c *Client, ctx context.Context, path string, opts ...RequestOption) (T, error) {
	return doTyped[T](c, ctx, http.MethodGet, path, nil, opts...)
}

// Post performs a POST request with a JSON body and decodes the response into type T.
func Post[T any](c *Client, ctx context.Context, path string, body any, opts ...RequestOption) (T, error) {
	return doTyped[T](c, ctx, http.MethodPost, path, body, opts...)
}

// Put performs a PUT request with a JSON body and decodes the response into type T.
func Put[T any](c *Client, ctx context.Context, path string, body any, opts ...RequestOption) (T, error) {
	return doTyped[T](c, ctx, http.MethodPut, path, body, opts...)
}

// doTyped executes a typed request and decodes the JSON response.
func doTyped[T any](c *Client, ctx context.Context, method, path string, body any, opts ...RequestOption) (T, error) {
	req := Request{
		Method: method,
		Path:   path,
		Body:   body,
	}
	for _, opt := range opts {
		opt(&req)
	}

	var zero T
	resp, err := c.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	return decodeResponse[T](resp)
}

// decodeResponse decodes a successful response body into T.
//
// An empty body (e.g. 204) is a unit success: T stays zero-valued and
// no parse is attempted. A non-JSON body is wrapped as {"message": raw}
// instead of failing, since some backend endpoints answer plain text.
func decodeResponse[T any](resp *Response) (T, error) {
	var data T
	if resp == nil || resp.IsEmpty() {
		return data, nil
	}

	if ct := resp.Headers["Content-Type"]; ct != "" && !strings.Contains(ct, "application/json") {
		wrapped, err := json.Marshal(map[string]string{"message": strings.TrimSpace(string(resp.Body))})
		if err != nil {
			return data, &Error{Code: ErrCodeDecode, Message: fmt.Sprintf("wrap response: %v", err), Err: err}
		}
		_ = json.Unmarshal(wrapped, &data)
		return data, nil
	}

	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return data, &Error{
			Code:       ErrCodeDecode,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decode response: %v", err),
			Body:       resp.Body,
			Err:        err,
		}
	}
	return data, nil
}
