// Package fetch retrieves upstream documents over HTTP.
//
// Every request carries a bounded timeout and is retried once after a short
// pause when the failure looks transient (transport error or 5xx). Responses
// are kept in an in-memory cache for the lifetime of the Client so that a
// document listed twice is only downloaded once.
//
// file:// URLs are read from the local filesystem, which allows building a
// trust list from previously downloaded documents.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pmylund/go-cache"
	"k8s.io/klog/v2"

	"github.com/jetstack/dcc-trustlist/pkg/logs"
	"github.com/jetstack/dcc-trustlist/pkg/version"
)

const (
	// DefaultTimeout bounds a single request attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the number of extra attempts after the first failure.
	DefaultRetries = 1
	// DefaultRetryWait is the pause between attempts.
	DefaultRetryWait = 2 * time.Second

	// maxBodySize rejects responses that are unreasonably large for a key list
	// or value set.
	maxBodySize = 32 << 20
)

// NetworkError is returned when an upstream document could not be retrieved:
// the host was unreachable, the request timed out, or the response status was
// not 2xx.
type NetworkError struct {
	URL string
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: unexpected status code %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the body of a document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Compile-time check that Client implements Fetcher
var _ Fetcher = (*Client)(nil)

// Options tune a Client. A zero Timeout or RetryWait selects the default;
// Retries is used as given, see DefaultOptions.
type Options struct {
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
	// HTTPClient is used when set; its Timeout is overridden by Timeout.
	HTTPClient *http.Client
}

// Client fetches JSON documents.
type Client struct {
	httpClient *http.Client
	retries    int
	retryWait  time.Duration
	responses  *cache.Cache
}

// DefaultOptions returns a single retry and the default timeouts.
func DefaultOptions() Options {
	return Options{
		Timeout:   DefaultTimeout,
		Retries:   DefaultRetries,
		RetryWait: DefaultRetryWait,
	}
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = DefaultRetryWait
	}

	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		httpClient = &c
	}
	httpClient.Timeout = opts.Timeout

	return &Client{
		httpClient: httpClient,
		retries:    opts.Retries,
		retryWait:  opts.RetryWait,
		responses:  cache.New(cache.NoExpiration, 0),
	}
}

// Fetch performs a GET of url and returns the response body. Failures are
// reported as *NetworkError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	logger := klog.FromContext(ctx).WithName("fetch").WithValues("url", url)

	if path, ok := strings.CutPrefix(url, "file://"); ok {
		return readFile(url, path)
	}

	if cached, ok := c.responses.Get(url); ok {
		logger.V(logs.Debug).Info("using cached response")
		return cached.([]byte), nil
	}

	operation := func() ([]byte, error) {
		return c.get(ctx, url)
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryWait)),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Info("fetch failed, retrying", "err", err.Error(), "wait", wait)
		}),
	)
	if err != nil {
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			// the context ended while waiting between attempts
			netErr = &NetworkError{URL: url, Err: err}
		}
		return nil, netErr
	}

	logger.V(logs.Debug).Info("fetched document", "bytes", len(body))
	c.responses.Set(url, body, cache.NoExpiration)
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(&NetworkError{URL: url, Err: err})
	}
	req.Header.Set("Accept", "application/json")
	version.SetUserAgent(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&NetworkError{URL: url, Err: err})
		}
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%q", string(body))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		// If we got a 4xx error, we shouldn't retry
		return nil, backoff.Permanent(err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if len(body) > maxBodySize {
		return nil, backoff.Permanent(&NetworkError{URL: url, Err: fmt.Errorf("response body exceeds %d bytes", maxBodySize)})
	}

	return body, nil
}

func readFile(url, path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if info.Size() > maxBodySize {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("file exceeds %d bytes", maxBodySize)}
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	return body, nil
}
