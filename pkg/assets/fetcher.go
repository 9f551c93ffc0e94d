package assets

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads stored documents back over HTTP, e.g. to embed them in a PDF.
type Fetcher struct {
	http     *resty.Client
	maxBytes int64
}

// NewFetcher builds a Fetcher. maxBytes <= 0 disables the size guard.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		http:     resty.New().SetTimeout(timeout).SetRetryCount(1),
		maxBytes: maxBytes,
	}
}

// Fetch returns the body at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	body := resp.Body()
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: %d bytes exceeds limit", url, len(body))
	}
	return body, nil
}
