// Package pipeline sequences one collection run: fetch → dedupe → cluster
// → score → archive, producing the tool-client response.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ozel/cryptowire/internal/collector"
	"github.com/ozel/cryptowire/internal/confirm"
	"github.com/ozel/cryptowire/internal/dedupe"
	"github.com/ozel/cryptowire/internal/storage"
)

const schemaVersion = 1

type Stage string

const (
	StageFetching   Stage = "FETCHING"
	StageDeduping   Stage = "DEDUPING"
	StageClustering Stage = "CLUSTERING"
	StageScoring    Stage = "SCORING"
	StageArchiving  Stage = "ARCHIVING"
)

// StageError reports which stage aborted the run and whether the caller
// may retry. Only storage and deadline failures ever surface here;
// per-source and per-article trouble is absorbed into skip records.
type StageError struct {
	Stage     Stage
	Retriable bool
	Err       error
}

func (e *StageError) Error() string {
	return "pipeline failed at " + string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// Archiver is the storage collaborator: all-or-nothing persistence of one
// run's artifacts.
type Archiver interface {
	ArchiveRun(ctx context.Context, objects []storage.Object) error
}

const (
	SkipPolicyDisallowed = "policy_disallowed"
	SkipFetchFailed      = "fetch_failed"
)

type SourceSkip struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Response is the GPT-action payload: confirmed clusters above the
// confidence cut, annotated with member sources and links.
type Response struct {
	SchemaVersion int           `json:"schema_version"`
	RequestID     string        `json:"request_id"`
	Clusters      []ClusterView `json:"clusters"`
	Skips         []SourceSkip  `json:"skips,omitempty"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

type ClusterView struct {
	ClusterID           string                `json:"cluster_id"`
	RepresentativeTitle string                `json:"representative_title"`
	ConfidenceScore     float64               `json:"confidence_score"`
	DistinctSourceCount int                   `json:"distinct_source_count"`
	Sources             []string              `json:"sources"`
	Links               []confirm.ClusterLink `json:"links"`
	Entities            []string              `json:"entities,omitempty"`
	EarliestPublishedAt time.Time             `json:"earliest_published_at"`
	LatestPublishedAt   time.Time             `json:"latest_published_at"`
}

type Orchestrator struct {
	fetchers      []collector.Fetcher
	deduper       *dedupe.Deduper
	clusterer     *confirm.Clusterer
	scorer        *confirm.Scorer
	archiver      Archiver
	ttlDays       int
	minConfidence float64
	lookback      time.Duration
}

func New(fetchers []collector.Fetcher, deduper *dedupe.Deduper, clusterer *confirm.Clusterer, scorer *confirm.Scorer, archiver Archiver, ttlDays int, minConfidence float64, lookback time.Duration) *Orchestrator {
	return &Orchestrator{
		fetchers:      fetchers,
		deduper:       deduper,
		clusterer:     clusterer,
		scorer:        scorer,
		archiver:      archiver,
		ttlDays:       ttlDays,
		minConfidence: minConfidence,
		lookback:      lookback,
	}
}

// Run executes one full pipeline pass. Stage outputs are fresh records;
// nothing mutates a prior stage's objects.
func (o *Orchestrator) Run(ctx context.Context) (*Response, error) {
	requestID := uuid.NewString()
	since := time.Now().UTC().Add(-o.lookback)
	log.Printf("run %s: start, %d sources, since=%s", requestID, len(o.fetchers), since.Format(time.RFC3339))

	// FETCHING: sources are independent, fetch them in parallel; each
	// fetcher serializes its own requests through the shared throttle.
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		articles []collector.Article
		skips    []SourceSkip
	)
	for _, f := range o.fetchers {
		fetcher := f
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fetcher.Source().Name
			items, err := fetcher.Fetch(ctx, since)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, collector.ErrPolicyDisallowed):
				log.Printf("run %s: %s skipped by robots policy", requestID, name)
				skips = append(skips, SourceSkip{Source: name, Reason: SkipPolicyDisallowed})
			case err != nil:
				log.Printf("run %s: %s fetch error: %v", requestID, name, err)
				skips = append(skips, SourceSkip{Source: name, Reason: SkipFetchFailed, Detail: err.Error()})
			default:
				articles = append(articles, items...)
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageFetching, Retriable: true, Err: err}
	}
	log.Printf("run %s: fetched %d articles, %d skips", requestID, len(articles), len(skips))

	// DEDUPING
	deduped := o.deduper.Filter(ctx, articles)
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageDeduping, Retriable: true, Err: err}
	}

	// CLUSTERING and SCORING run single-threaded over the whole batch;
	// membership decisions need every article of the run.
	clusters := o.clusterer.Cluster(deduped)
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageClustering, Retriable: true, Err: err}
	}
	for i := range clusters {
		clusters[i].ConfidenceScore = o.scorer.Score(clusters[i])
	}
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageScoring, Retriable: true, Err: err}
	}
	log.Printf("run %s: %d deduped articles -> %d clusters", requestID, len(deduped), len(clusters))

	resp := o.assemble(requestID, clusters, skips)

	// ARCHIVING is all-or-nothing for the run.
	if err := o.archiver.ArchiveRun(ctx, o.runObjects(requestID, deduped, clusters, resp)); err != nil {
		return nil, &StageError{Stage: StageArchiving, Retriable: true, Err: err}
	}

	log.Printf("run %s: done, %d clusters above confidence %.2f", requestID, len(resp.Clusters), o.minConfidence)
	return resp, nil
}

func (o *Orchestrator) assemble(requestID string, clusters []confirm.Cluster, skips []SourceSkip) *Response {
	views := make([]ClusterView, 0, len(clusters))
	for _, c := range clusters {
		if c.ConfidenceScore < o.minConfidence {
			continue
		}
		views = append(views, ClusterView{
			ClusterID:           c.ClusterID,
			RepresentativeTitle: c.RepresentativeTitle,
			ConfidenceScore:     c.ConfidenceScore,
			DistinctSourceCount: c.DistinctSourceCount,
			Sources:             sourceNames(c),
			Links:               c.Links,
			Entities:            c.Entities,
			EarliestPublishedAt: c.EarliestPublishedAt,
			LatestPublishedAt:   c.LatestPublishedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].ConfidenceScore != views[j].ConfidenceScore {
			return views[i].ConfidenceScore > views[j].ConfidenceScore
		}
		return views[i].EarliestPublishedAt.Before(views[j].EarliestPublishedAt)
	})

	return &Response{
		SchemaVersion: schemaVersion,
		RequestID:     requestID,
		Clusters:      views,
		Skips:         skips,
		GeneratedAt:   time.Now().UTC(),
	}
}

func (o *Orchestrator) runObjects(requestID string, articles []collector.Article, clusters []confirm.Cluster, resp *Response) []storage.Object {
	now := time.Now().UTC()
	objects := make([]storage.Object, 0, len(articles)+len(clusters)+2)

	for _, a := range articles {
		objects = append(objects, storage.Object{
			Path:          storage.RawArticlePath(a.SourceName, a.FetchedAt, a.ID),
			Payload:       a,
			TTLDays:       o.ttlDays,
			SchemaVersion: schemaVersion,
		})
	}
	// Every cluster is archived, including the ones below the response
	// cut; the confidence filter is a view concern.
	for _, c := range clusters {
		objects = append(objects, storage.Object{
			Path:          storage.ClusterPath(now, c.ClusterID),
			Payload:       c,
			TTLDays:       o.ttlDays,
			SchemaVersion: schemaVersion,
		})
	}
	objects = append(objects, storage.Object{
		Path: storage.RunLogPath(now, requestID),
		Payload: map[string]any{
			"request_id": requestID,
			"articles":   len(articles),
			"clusters":   len(clusters),
			"skips":      resp.Skips,
		},
		TTLDays:       o.ttlDays,
		SchemaVersion: schemaVersion,
	})
	objects = append(objects, storage.Object{
		Path:          storage.ActionPath(now, requestID, "news_run"),
		Payload:       resp,
		TTLDays:       o.ttlDays,
		SchemaVersion: schemaVersion,
	})
	return objects
}

func sourceNames(c confirm.Cluster) []string {
	seen := make(map[string]struct{}, len(c.Members))
	names := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if _, ok := seen[m.SourceName]; ok {
			continue
		}
		seen[m.SourceName] = struct{}{}
		names = append(names, m.SourceName)
	}
	return names
}
