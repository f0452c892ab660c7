// Package dedupe filters previously-seen articles by content fingerprint
// before they enter clustering.
package dedupe

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ozel/cryptowire/internal/collector"
)

// SeenStore is the fingerprint set. Entries expire with the news TTL, so
// the set stays bounded by the retention window. Adds are idempotent.
type SeenStore interface {
	Seen(ctx context.Context, hash string) (bool, error)
	Add(ctx context.Context, hash string) error
}

type Deduper struct {
	store SeenStore
}

func New(store SeenStore) *Deduper {
	return &Deduper{store: store}
}

// Filter returns the subsequence of articles whose fingerprint has not been
// seen, recording each admitted fingerprint. Identical hashes inside one
// batch collapse to the first occurrence, so re-running Filter over its own
// output is a no-op apart from the store writes it already made.
func (d *Deduper) Filter(ctx context.Context, articles []collector.Article) []collector.Article {
	out := make([]collector.Article, 0, len(articles))
	inBatch := make(map[string]struct{}, len(articles))

	for _, a := range articles {
		if _, ok := inBatch[a.ContentHash]; ok {
			continue
		}

		seen, err := d.store.Seen(ctx, a.ContentHash)
		if err != nil {
			// A flaky seen-set must not drop news: admit and move on.
			log.Printf("dedupe: seen lookup failed for %s: %v", a.ID, err)
		} else if seen {
			continue
		}

		if err := d.store.Add(ctx, a.ContentHash); err != nil {
			log.Printf("dedupe: record fingerprint %s: %v", a.ID, err)
		}
		inBatch[a.ContentHash] = struct{}{}
		out = append(out, a)
	}

	return out
}

// MemorySeen is the in-process store used by tests and by deployments
// without redis. Expiry mirrors the news TTL.
type MemorySeen struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemorySeen(ttl time.Duration) *MemorySeen {
	return &MemorySeen{ttl: ttl, now: time.Now, entries: make(map[string]time.Time)}
}

func (m *MemorySeen) Seen(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.entries[hash]
	if !ok {
		return false, nil
	}
	if m.ttl > 0 && m.now().Sub(at) > m.ttl {
		delete(m.entries, hash)
		return false, nil
	}
	return true, nil
}

func (m *MemorySeen) Add(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[hash]; !ok {
		m.entries[hash] = m.now()
	}
	return nil
}

// RedisSeen persists fingerprints across runs as TTL'd keys. Concurrent
// runs are safe: SET of an idempotent fingerprint is append-only,
// last-writer-wins.
type RedisSeen struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSeen(client *redis.Client, ttl time.Duration) *RedisSeen {
	return &RedisSeen{client: client, ttl: ttl}
}

func seenKey(hash string) string { return "news:seen:" + hash }

func (r *RedisSeen) Seen(ctx context.Context, hash string) (bool, error) {
	n, err := r.client.Exists(ctx, seenKey(hash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisSeen) Add(ctx context.Context, hash string) error {
	return r.client.Set(ctx, seenKey(hash), 1, r.ttl).Err()
}
