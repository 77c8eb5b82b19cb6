package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchResult is an open remote audio stream. ContentLength is -1 when the
// source does not declare a total length.
type FetchResult struct {
	Body          io.ReadCloser
	ContentLength int64
}

type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// HTTPFetcher streams a remote audio source with a plain GET. The client
// carries no overall timeout: episodes are tens of megabytes on variable
// bandwidth, and a deadline here would fail slow connections for no reason.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher() FetcherInterface {
	return &HTTPFetcher{client: &http.Client{}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	return &FetchResult{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
	}, nil
}
