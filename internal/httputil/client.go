// Package httputil provides HTTP response helpers and client abstractions.
package httputil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// HTTPClient abstracts HTTP operations for testability. The language-model
// schema resolver talks to its backend through this interface, so tests can
// script responses without a network.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient creates a new StandardClient wrapping the given http.Client.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// Do sends an HTTP request.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

// MockHTTPClient provides a scriptable HTTP client implementation for tests.
// Responses are returned in order; once exhausted, DefaultError (or a generic
// error) is returned.
type MockHTTPClient struct {
	mu           sync.Mutex
	Requests     []*http.Request
	Responses    []*MockResponse
	responseIdx  int
	DefaultError error
}

// MockResponse defines a canned HTTP response for testing.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    http.Header
	Error      error
}

// NewMockHTTPClient creates a new mock HTTP client.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a canned response.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{StatusCode: statusCode, Body: body})
}

// AddError queues a response that fails with err.
func (m *MockHTTPClient) AddError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{Error: err})
}

// Do records the request and returns the next queued response.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if m.responseIdx >= len(m.Responses) {
		if m.DefaultError != nil {
			return nil, m.DefaultError
		}
		return nil, fmt.Errorf("mock http client: no response queued for %s %s", req.Method, req.URL)
	}

	resp := m.Responses[m.responseIdx]
	m.responseIdx++

	if resp.Error != nil {
		return nil, resp.Error
	}

	headers := resp.Headers
	if headers == nil {
		headers = http.Header{"Content-Type": []string{"application/json"}}
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Header:     headers,
		Body:       io.NopCloser(bytes.NewReader([]byte(resp.Body))),
		Request:    req,
	}, nil
}
