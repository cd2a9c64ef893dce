package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/amp-labs/fsm/logger"
	"github.com/amp-labs/fsm/retry"
	"github.com/amp-labs/fsm/should"
	"github.com/amp-labs/fsm/statemachine"
	"github.com/zeebo/xxh3"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	retryBaseDelay  = 200 * time.Millisecond
	retryMaxDelay   = 2 * time.Second
	maxBodySize     = 4 << 20
)

// ErrFetchFailed is wrapped by every error caused by an unexpected response.
var ErrFetchFailed = errors.New("failed to fetch machine document")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s returned %d %s",
		ErrFetchFailed, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return ErrFetchFailed
}

// HTTPSource fetches a machine document with a GET request.
type HTTPSource struct {
	url      string
	client   *http.Client
	headers  http.Header
	attempts retry.Attempts
	timeout  time.Duration

	mu       sync.Mutex
	checksum uint64
	fetched  bool
}

var _ statemachine.ConfigSource = (*HTTPSource)(nil)

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithClient replaces the default client. The client is used as given;
// WithTimeout does not modify it. A nil client keeps the default.
func WithClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithHeader adds a request header, e.g. an Authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSource) {
		s.headers.Add(key, value)
	}
}

// WithTimeout sets the timeout of the default client. It has no effect when
// WithClient supplies a client.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.timeout = timeout
	}
}

// WithRetry sets how many times a request is made before Fetch gives up.
// Network errors and 5xx or 429 responses are retried; other responses are
// final. One disables retries.
func WithRetry(attempts uint) HTTPOption {
	return func(s *HTTPSource) {
		s.attempts = retry.Attempts(max(attempts, 1))
	}
}

// HTTP returns a source fetching the document at url.
func HTTP(url string, opts ...HTTPOption) *HTTPSource {
	src := &HTTPSource{
		url:      url,
		headers:  http.Header{},
		attempts: defaultAttempts,
		timeout:  defaultTimeout,
	}

	for _, opt := range opts {
		opt(src)
	}

	if src.client == nil {
		src.client = &http.Client{Transport: NewTransport(), Timeout: src.timeout}
	}

	return src
}

// URL returns the document location.
func (s *HTTPSource) URL() string {
	return s.url
}

// LastChecksum returns the xxh3 hash of the last document fetched
// successfully, and false if nothing was fetched yet.
func (s *HTTPSource) LastChecksum() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.checksum, s.fetched
}

func (s *HTTPSource) Fetch(ctx context.Context) (statemachine.RawConfig, error) {
	body, err := retry.DoValue(ctx, s.get,
		retry.WithAttempts(s.attempts),
		retry.WithBackoff(retry.ExpBackoff{Base: retryBaseDelay, Max: retryMaxDelay, Factor: 2}),
		retry.WithJitter(retry.EqualJitter),
	)
	if err != nil {
		return nil, err
	}

	raw, err := statemachine.ParseConfig(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.url, err)
	}

	sum := xxh3.Hash(body)

	s.mu.Lock()
	changed := !s.fetched || s.checksum != sum
	s.checksum = sum
	s.fetched = true
	s.mu.Unlock()

	logger.Get(ctx).DebugContext(ctx, "Fetched machine document",
		"url", s.url,
		"bytes", len(body),
		"checksum", fmt.Sprintf("%016x", sum),
		"changed", changed,
	)

	return raw, nil
}

func (s *HTTPSource) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, retry.Abort(fmt.Errorf("%w: %w", ErrFetchFailed, err))
	}

	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/yaml, application/json;q=0.9, text/plain;q=0.5")
	}

	rsp, err := s.client.Do(req)
	if err != nil {
		logger.Get(ctx).DebugContext(ctx, "Machine document request failed",
			"url", s.url, "attempt", retry.Attempt(ctx), "error", err)

		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	defer should.Close(ctx, rsp.Body, "closing machine document response")

	if rsp.StatusCode < http.StatusOK || rsp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(rsp.Body, maxBodySize))

		statusErr := &StatusError{StatusCode: rsp.StatusCode, URL: s.url}
		if !retryable(rsp.StatusCode) {
			return nil, retry.Abort(statusErr)
		}

		return nil, statusErr
	}

	data, err := io.ReadAll(io.LimitReader(rsp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrFetchFailed, err)
	}

	if len(data) > maxBodySize {
		return nil, retry.Abort(fmt.Errorf("%w: document exceeds %d bytes", ErrFetchFailed, maxBodySize))
	}

	return toUTF8(data, rsp.Header.Get("Content-Type")), nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
