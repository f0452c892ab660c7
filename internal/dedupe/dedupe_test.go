package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/ozel/cryptowire/internal/collector"
)

func article(id, source, hash string) collector.Article {
	return collector.Article{ID: id, SourceName: source, ContentHash: hash}
}

func TestFilterDropsSeenAndInBatchDuplicates(t *testing.T) {
	d := New(NewMemorySeen(time.Hour))
	ctx := context.Background()

	first := d.Filter(ctx, []collector.Article{
		article("a1", "coindesk", "hash-1"),
		article("a2", "theblock", "hash-1"), // same content from another source
		article("a3", "coindesk", "hash-2"),
	})
	if len(first) != 2 {
		t.Fatalf("expected 2 articles after dedupe, got %d", len(first))
	}
	if first[0].ID != "a1" || first[1].ID != "a3" {
		t.Fatalf("unexpected survivors: %v", first)
	}

	// A later run with already-recorded fingerprints yields nothing.
	second := d.Filter(ctx, []collector.Article{
		article("a4", "decrypt", "hash-1"),
		article("a5", "decrypt", "hash-2"),
	})
	if len(second) != 0 {
		t.Fatalf("expected previously-seen hashes to be dropped, got %d", len(second))
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	in := []collector.Article{
		article("a1", "coindesk", "hash-1"),
		article("a2", "theblock", "hash-2"),
	}

	d := New(NewMemorySeen(time.Hour))
	once := d.Filter(ctx, in)

	// Re-running over an already-deduped sequence with a fresh store must
	// reproduce it exactly.
	d2 := New(NewMemorySeen(time.Hour))
	twice := d2.Filter(ctx, once)

	if len(once) != len(twice) {
		t.Fatalf("idempotence violated: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Fatalf("idempotence violated at %d: %q vs %q", i, once[i].ID, twice[i].ID)
		}
	}
}

func TestMemorySeenExpiresWithTTL(t *testing.T) {
	m := NewMemorySeen(time.Hour)
	now := time.Now()
	m.now = func() time.Time { return now }

	if err := m.Add(context.Background(), "hash-1"); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if seen, _ := m.Seen(context.Background(), "hash-1"); !seen {
		t.Fatalf("fingerprint should be seen inside the TTL window")
	}

	// Past the retention window the fingerprint is forgotten.
	now = now.Add(2 * time.Hour)
	if seen, _ := m.Seen(context.Background(), "hash-1"); seen {
		t.Fatalf("fingerprint should expire with the TTL")
	}
}
