package collector

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsCacheTTL = time.Hour

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// RobotsCache resolves and caches robots.txt per host, refreshed at most
// once per hour. Unreachable robots files fall back to the robotstxt
// status-code rules (404 allows, 5xx disallows).
type RobotsCache struct {
	client    *http.Client
	userAgent string
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]robotsEntry
}

func NewRobotsCache(client *http.Client, userAgent string) *RobotsCache {
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		now:       time.Now,
		entries:   make(map[string]robotsEntry),
	}
}

// Allowed reports whether the user agent may fetch rawURL, plus the
// crawl-delay the site requests for our agent group.
func (r *RobotsCache) Allowed(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("robots: parse url %q: %w", rawURL, err)
	}

	data, err := r.dataForHost(ctx, u)
	if err != nil {
		return false, 0, err
	}

	group := data.FindGroup(r.userAgent)
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path), group.CrawlDelay, nil
}

func (r *RobotsCache) dataForHost(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Scheme + "://" + u.Host

	r.mu.RLock()
	entry, ok := r.entries[host]
	r.mu.RUnlock()
	if ok && r.now().Sub(entry.fetchedAt) < robotsCacheTTL {
		return entry.data, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after taking the write lock.
	if entry, ok := r.entries[host]; ok && r.now().Sub(entry.fetchedAt) < robotsCacheTTL {
		return entry.data, nil
	}

	data, err := r.fetch(ctx, host+"/robots.txt")
	if err != nil {
		// Stale policy beats no policy when the refresh fails.
		if ok {
			log.Printf("robots: refresh %s failed, keeping stale policy: %v", host, err)
			return entry.data, nil
		}
		return nil, err
	}

	r.entries[host] = robotsEntry{data: data, fetchedAt: r.now()}
	return data, nil
}

func (r *RobotsCache) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("robots: build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("robots: fetch %s: %w", robotsURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("robots: read %s: %w", robotsURL, err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("robots: parse %s: %w", robotsURL, err)
	}
	return data, nil
}
