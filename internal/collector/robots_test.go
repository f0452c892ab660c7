package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func robotsServer(t *testing.T, hits *int32, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(hits, 1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestRobotsAllowedHonorsDisallowAndCrawlDelay(t *testing.T) {
	var hits int32
	srv := robotsServer(t, &hits, "User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n", http.StatusOK)
	defer srv.Close()

	rc := NewRobotsCache(srv.Client(), "cryptowire-bot/1.0")
	ctx := context.Background()

	allowed, delay, err := rc.Allowed(ctx, srv.URL+"/news/feed.xml")
	if err != nil {
		t.Fatalf("Allowed error: %v", err)
	}
	if !allowed {
		t.Fatalf("public path should be allowed")
	}
	if delay != 2*time.Second {
		t.Fatalf("crawl-delay = %v, want 2s", delay)
	}

	allowed, _, err = rc.Allowed(ctx, srv.URL+"/private/internal.xml")
	if err != nil {
		t.Fatalf("Allowed error: %v", err)
	}
	if allowed {
		t.Fatalf("disallowed path must be blocked")
	}
}

func TestRobotsCachePerHostWithTTLRefresh(t *testing.T) {
	var hits int32
	srv := robotsServer(t, &hits, "User-agent: *\nDisallow:\n", http.StatusOK)
	defer srv.Close()

	rc := NewRobotsCache(srv.Client(), "cryptowire-bot/1.0")
	now := time.Now()
	rc.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := rc.Allowed(ctx, srv.URL+"/a"); err != nil {
			t.Fatalf("Allowed error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("robots.txt fetched %d times inside the TTL, want 1", got)
	}

	now = now.Add(robotsCacheTTL + time.Minute)
	if _, _, err := rc.Allowed(ctx, srv.URL+"/a"); err != nil {
		t.Fatalf("Allowed error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expired entry should be refetched, got %d fetches", got)
	}
}

func TestRobotsMissingFileAllowsEverything(t *testing.T) {
	var hits int32
	srv := robotsServer(t, &hits, "", http.StatusNotFound)
	defer srv.Close()

	rc := NewRobotsCache(srv.Client(), "cryptowire-bot/1.0")
	allowed, _, err := rc.Allowed(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("Allowed error: %v", err)
	}
	if !allowed {
		t.Fatalf("a 404 robots.txt means no restrictions")
	}
}
