package fetch

import (
	"context"
	"errors"
	"sync"
)

// Compile-time check that FakeFetcher implements Fetcher
var _ Fetcher = (*FakeFetcher)(nil)

// FakeFetcher is a fake implementation of Fetcher for testing. It serves
// canned bodies and errors by URL and is safe for concurrent use.
type FakeFetcher struct {
	// Bodies are returned for the matching URL.
	Bodies map[string][]byte

	// Errors are returned for the matching URL. An error takes precedence over
	// a body for the same URL.
	Errors map[string]error

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeFetcher creates a FakeFetcher that serves nothing until Bodies or
// Errors are set.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		Bodies: map[string][]byte{},
		Errors: map[string]error{},
	}
}

// Fetch returns the configured error or body for url. Unknown URLs fail with a
// 404 *NetworkError.
func (f *FakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	f.mu.Unlock()

	if ctx.Err() != nil {
		return nil, &NetworkError{URL: url, Err: ctx.Err()}
	}

	if err, ok := f.Errors[url]; ok {
		return nil, err
	}
	if body, ok := f.Bodies[url]; ok {
		return body, nil
	}
	return nil, &NetworkError{URL: url, StatusCode: 404, Err: errNotFound}
}

// Calls returns how many times url was fetched.
func (f *FakeFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

var errNotFound = errors.New("not found")
