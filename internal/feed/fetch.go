// Package feed implements the ingestion pipeline: charset-aware fetch,
// parse, field mapping, stop-tag filtering, dedup and scheduling.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// ErrFetch marks transport-level failures (network error or non-2xx status).
var ErrFetch = errors.New("feed fetch failed")

// Fetcher retrieves feed bodies over HTTP and decodes them to text.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher whose requests are bounded by timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the feed at url and decodes the body to a UTF-8 string.
// A windows-1251 charset declared in the Content-Type header is honored;
// anything else is treated as UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s returned status %d", ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "charset=windows-1251") {
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(body)
		if err != nil {
			return "", fmt.Errorf("decode windows-1251: %w", err)
		}
		return string(decoded), nil
	}
	return string(body), nil
}
