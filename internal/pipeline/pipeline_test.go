package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ozel/cryptowire/internal/collector"
	"github.com/ozel/cryptowire/internal/confirm"
	"github.com/ozel/cryptowire/internal/dedupe"
	"github.com/ozel/cryptowire/internal/storage"
)

type fakeFetcher struct {
	src   collector.Source
	items []collector.Article
	err   error
}

func (f *fakeFetcher) Source() collector.Source { return f.src }

func (f *fakeFetcher) Fetch(ctx context.Context, since time.Time) ([]collector.Article, error) {
	return f.items, f.err
}

type fakeArchiver struct {
	objects []storage.Object
	err     error
}

func (a *fakeArchiver) ArchiveRun(ctx context.Context, objects []storage.Object) error {
	if a.err != nil {
		return a.err
	}
	a.objects = append(a.objects, objects...)
	return nil
}

func newsArticle(id, source, title string, published time.Time) collector.Article {
	return collector.Article{
		ID:          id,
		SourceName:  source,
		URL:         "https://" + source + ".example/" + id,
		Title:       title,
		PublishedAt: published,
		FetchedAt:   published,
		ContentHash: "hash-" + id,
	}
}

func orchestratorFor(fetchers []collector.Fetcher, archiver Archiver) *Orchestrator {
	sources := []collector.Source{
		{Name: "coindesk", TrustWeight: 0.9},
		{Name: "theblock", TrustWeight: 0.9},
		{Name: "decrypt", TrustWeight: 0.7},
	}
	return New(
		fetchers,
		dedupe.New(dedupe.NewMemorySeen(time.Hour)),
		confirm.NewClusterer(confirm.NewTokenSortSimilarity(), 0.85, 48*time.Hour),
		confirm.NewScorer(sources, 24*time.Hour, 0.25),
		archiver,
		7, 0.2, 12*time.Hour,
	)
}

func TestRunConfirmsAcrossSourcesAndArchivesEverything(t *testing.T) {
	now := time.Now().UTC()
	fetchers := []collector.Fetcher{
		&fakeFetcher{
			src: collector.Source{Name: "coindesk"},
			items: []collector.Article{
				newsArticle("a1", "coindesk", "SEC approves spot bitcoin ETF", now.Add(-time.Hour)),
			},
		},
		&fakeFetcher{
			src: collector.Source{Name: "theblock"},
			items: []collector.Article{
				newsArticle("a2", "theblock", "SEC Approves Spot Bitcoin ETF", now.Add(-30*time.Minute)),
				newsArticle("a3", "theblock", "Solana validators ship patch", now),
			},
		},
	}
	archiver := &fakeArchiver{}

	resp, err := orchestratorFor(fetchers, archiver).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if resp.SchemaVersion != 1 || resp.RequestID == "" {
		t.Fatalf("response envelope incomplete: %+v", resp)
	}
	if len(resp.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(resp.Clusters))
	}

	// Two-source confirmation outranks the singleton.
	top := resp.Clusters[0]
	if top.DistinctSourceCount != 2 {
		t.Fatalf("top cluster distinct_source_count = %d, want 2", top.DistinctSourceCount)
	}
	if top.ConfidenceScore <= resp.Clusters[1].ConfidenceScore {
		t.Fatalf("confirmed cluster should outscore the singleton: %f vs %f",
			top.ConfidenceScore, resp.Clusters[1].ConfidenceScore)
	}
	if len(top.Sources) != 2 || len(top.Links) != 2 {
		t.Fatalf("top cluster should carry both sources and links: %+v", top)
	}

	// 3 raw articles + 2 clusters + run log + action record.
	if len(archiver.objects) != 7 {
		t.Fatalf("expected 7 archived objects, got %d", len(archiver.objects))
	}
	for _, o := range archiver.objects {
		if o.TTLDays != 7 || o.SchemaVersion != 1 {
			t.Fatalf("archive envelope wrong for %s: ttl=%d schema=%d", o.Path, o.TTLDays, o.SchemaVersion)
		}
	}
}

func TestRunIsolatesFailingSources(t *testing.T) {
	now := time.Now().UTC()
	fetchers := []collector.Fetcher{
		&fakeFetcher{
			src: collector.Source{Name: "coindesk"},
			items: []collector.Article{
				newsArticle("a1", "coindesk", "BTC hits $70k", now),
			},
		},
		&fakeFetcher{
			src: collector.Source{Name: "cryptopanic"},
			err: fmt.Errorf("cryptopanic: %w", collector.ErrPolicyDisallowed),
		},
		&fakeFetcher{
			src: collector.Source{Name: "messari"},
			err: fmt.Errorf("messari: %w", collector.ErrFetchFailed),
		},
	}
	archiver := &fakeArchiver{}

	resp, err := orchestratorFor(fetchers, archiver).Run(context.Background())
	if err != nil {
		t.Fatalf("two broken sources must not fail the run: %v", err)
	}
	if len(resp.Clusters) != 1 {
		t.Fatalf("healthy source's article should survive, got %d clusters", len(resp.Clusters))
	}
	if len(resp.Skips) != 2 {
		t.Fatalf("expected 2 skip records, got %d", len(resp.Skips))
	}
	reasons := make(map[string]string, 2)
	for _, s := range resp.Skips {
		reasons[s.Source] = s.Reason
	}
	if reasons["cryptopanic"] != SkipPolicyDisallowed {
		t.Fatalf("robots skip misreported: %v", resp.Skips)
	}
	if reasons["messari"] != SkipFetchFailed {
		t.Fatalf("fetch failure misreported: %v", resp.Skips)
	}
}

func TestRunArchiveFailureAbortsWithStageError(t *testing.T) {
	now := time.Now().UTC()
	fetchers := []collector.Fetcher{
		&fakeFetcher{
			src: collector.Source{Name: "coindesk"},
			items: []collector.Article{
				newsArticle("a1", "coindesk", "BTC hits $70k", now),
			},
		},
	}
	archiver := &fakeArchiver{err: fmt.Errorf("archive: %w", storage.ErrWrite)}

	_, err := orchestratorFor(fetchers, archiver).Run(context.Background())
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected a StageError, got %v", err)
	}
	if se.Stage != StageArchiving || !se.Retriable {
		t.Fatalf("storage failure should be a retriable ARCHIVING error, got %+v", se)
	}
	if !errors.Is(err, storage.ErrWrite) {
		t.Fatalf("cause should stay unwrappable, got %v", err)
	}
	if len(archiver.objects) != 0 {
		t.Fatalf("nothing may be recorded for a failed archive")
	}
}

func TestRunExpiredContextStopsAtFetching(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetchers := []collector.Fetcher{
		&fakeFetcher{src: collector.Source{Name: "coindesk"}},
	}
	_, err := orchestratorFor(fetchers, &fakeArchiver{}).Run(ctx)

	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected a StageError, got %v", err)
	}
	if se.Stage != StageFetching || !se.Retriable {
		t.Fatalf("cancelled run should abort at FETCHING, got %+v", se)
	}
}

func TestRunObjectsUseArchivePaths(t *testing.T) {
	now := time.Now().UTC()
	fetchers := []collector.Fetcher{
		&fakeFetcher{
			src: collector.Source{Name: "coindesk"},
			items: []collector.Article{
				newsArticle("a1", "coindesk", "BTC hits $70k", now),
			},
		},
	}
	archiver := &fakeArchiver{}

	if _, err := orchestratorFor(fetchers, archiver).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	var raw, clustered, logs, actions int
	for _, o := range archiver.objects {
		switch {
		case strings.HasPrefix(o.Path, "news/raw/coindesk/"):
			raw++
		case strings.HasPrefix(o.Path, "news/clustered/"):
			clustered++
		case strings.HasPrefix(o.Path, "logs/"):
			logs++
		case strings.HasPrefix(o.Path, "gpt/actions/"):
			actions++
		default:
			t.Fatalf("object under unexpected path %q", o.Path)
		}
	}
	if raw != 1 || clustered != 1 || logs != 1 || actions != 1 {
		t.Fatalf("archive layout wrong: raw=%d clustered=%d logs=%d actions=%d",
			raw, clustered, logs, actions)
	}
}
