package regionsrc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"regionmap/internal/logger"
	"regionmap/internal/metrics"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Fetcher returns the raw body behind a source url. Failures should wrap
// ErrSourceUnavailable.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// DefaultMaxBytes caps a source body.
const DefaultMaxBytes = 32 << 20

// HTTPFetcher fetches over HTTP. Relative urls are resolved against BaseURL.
type HTTPFetcher struct {
	Client   *http.Client
	BaseURL  string
	MaxBytes int64
}

func (f *HTTPFetcher) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || f.BaseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	target, err := f.resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, raw, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, raw, err)
	}
	req.Header.Set("Accept", "application/json")
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, raw, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: raw, Code: resp.StatusCode}
	}
	max := f.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read: %v", ErrSourceUnavailable, raw, err)
	}
	if int64(len(body)) > max {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrSourceUnavailable, raw, max)
	}
	return body, nil
}

// DirFetcher reads sources from a static asset tree; "/tr-cities.json" maps
// to "tr-cities.json" inside FS.
type DirFetcher struct {
	FS fs.FS
}

func (f DirFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, raw, err)
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return nil, fmt.Errorf("%w: %s: not a local asset", ErrSourceUnavailable, raw)
	}
	name := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if !fs.ValidPath(name) || name == "." {
		return nil, fmt.Errorf("%w: %s: invalid asset path", ErrSourceUnavailable, raw)
	}
	body, err := fs.ReadFile(f.FS, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, raw, err)
	}
	return body, nil
}

// BodyCache is the part of a redis client CachedFetcher needs.
type BodyCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CacheKeyPrefix prefixes cached source bodies.
const CacheKeyPrefix = "regionmap:src:"

// CachedFetcher keeps successfully fetched bodies in redis for TTL. Redis
// errors fall back to Next.
type CachedFetcher struct {
	Next  Fetcher
	Cache BodyCache
	TTL   time.Duration
}

func (f *CachedFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	key := CacheKeyPrefix + raw
	b, err := f.Cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.SourceCacheHitsTotal.Inc()
		return b, nil
	case errors.Is(err, redis.Nil):
		metrics.SourceCacheMissesTotal.Inc()
	default:
		metrics.SourceCacheMissesTotal.Inc()
		logger.L().Debug("source_cache_get_error", "source", raw, "err", err)
	}
	body, err := f.Next.Fetch(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := f.Cache.Set(ctx, key, body, f.TTL).Err(); err != nil {
		logger.L().Debug("source_cache_set_error", "source", raw, "err", err)
	}
	return body, nil
}

// SharedFetcher collapses identical concurrent fetches from many views into
// one. The shared call does not inherit any caller's cancellation, so one view
// leaving never fails the others; it is bounded by Timeout instead (default
// 30s). Each waiter still stops on its own context.
type SharedFetcher struct {
	Next    Fetcher
	Timeout time.Duration
	group   singleflight.Group
}

func (f *SharedFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	ch := f.group.DoChan(raw, func() (interface{}, error) {
		timeout := f.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return f.Next.Fetch(sctx, raw)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, raw, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
