package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"line-memo-relay/internal/domain"
)

// HTTPStatusError captures a non-2xx response from the forward destination.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("edge: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// HTTPForwarder posts relay envelopes as JSON to a fixed destination.
type HTTPForwarder struct {
	url        string
	httpClient *http.Client
}

type ForwarderOption func(*HTTPForwarder)

func WithHTTPClient(httpClient *http.Client) ForwarderOption {
	return func(f *HTTPForwarder) {
		f.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) ForwarderOption {
	return func(f *HTTPForwarder) {
		f.httpClient = &http.Client{Timeout: d}
	}
}

// NewHTTPForwarder creates a forwarder for url.
func NewHTTPForwarder(url string, opts ...ForwarderOption) (*HTTPForwarder, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("edge: forward url must not be empty")
	}
	f := &HTTPForwarder{url: url, httpClient: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Forward delivers env once. It does not retry.
func (f *HTTPForwarder) Forward(ctx context.Context, env domain.RelayEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("edge: marshal envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("edge: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("edge: forward: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	// Redirects that survive the client's redirect policy still mean the
	// destination accepted the POST.
	if res.StatusCode < 200 || res.StatusCode >= 400 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: f.url, Body: string(buf)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
	return nil
}
