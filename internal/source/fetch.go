package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamlens/streamlens/internal/core"
	"github.com/streamlens/streamlens/internal/playlist"
)

// PlaylistCache stores fetched playlist bodies between runs. A nil cache
// disables caching.
type PlaylistCache interface {
	GetCachedPlaylist(ctx context.Context, url string) (string, error)
	SetCachedPlaylist(ctx context.Context, url, body string, ttl time.Duration) error
}

// Result is the outcome of fetching one source. Failures stay local to the
// source; the aggregation run continues with whatever fetched.
type Result struct {
	Source    Source
	Channels  []core.Channel
	FromCache bool
	Err       error
}

// Fetcher downloads playlists with bounded concurrency.
type Fetcher struct {
	Client      *http.Client
	Cache       PlaylistCache
	CacheTTL    time.Duration
	Concurrency int
	MaxBodySize int64
}

// NewFetcher applies the fetcher defaults.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:      &http.Client{Timeout: 30 * time.Second},
		CacheTTL:    time.Hour,
		Concurrency: 4,
		MaxBodySize: 32 << 20,
	}
}

// FetchAll downloads every source concurrently and returns one result per
// source, in manifest order.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) []Result {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]Result, len(sources))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(f.Concurrency, 1))

	for i, src := range sources {
		group.Go(func() error {
			results[i] = f.fetchOne(groupCtx, src)
			// Per-source failures never cancel sibling fetches.
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, src Source) Result {
	result := Result{Source: src}

	body, fromCache, err := f.body(ctx, src)
	if err != nil {
		result.Err = err
		return result
	}
	result.FromCache = fromCache

	channels, err := playlist.Parse(strings.NewReader(body), src.Name)
	if err != nil {
		result.Err = fmt.Errorf("parse playlist %q: %w", src.Name, err)
		return result
	}
	result.Channels = channels

	if !fromCache && f.Cache != nil && f.CacheTTL > 0 {
		// Cache write failures are not fetch failures.
		_ = f.Cache.SetCachedPlaylist(ctx, src.URL, body, f.CacheTTL)
	}

	return result
}

func (f *Fetcher) body(ctx context.Context, src Source) (string, bool, error) {
	if f.Cache != nil {
		if cached, err := f.Cache.GetCachedPlaylist(ctx, src.URL); err == nil && cached != "" {
			return cached, true, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return "", false, fmt.Errorf("build request for %q: %w", src.Name, err)
	}
	req.Header.Set("Accept", "audio/x-mpegurl, application/x-mpegurl, text/plain, */*")

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetch %q: %w", src.Name, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("fetch %q: unexpected status %d", src.Name, resp.StatusCode)
	}

	limit := f.MaxBodySize
	if limit <= 0 {
		limit = 32 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", false, fmt.Errorf("read %q: %w", src.Name, err)
	}

	return string(data), false, nil
}
