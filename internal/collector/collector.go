package collector

import (
	"context"
	"errors"
	"time"
)

type Kind string

const (
	KindRSS  Kind = "rss"
	KindHTML Kind = "html"
)

// Source is immutable crawl configuration for one publisher. Loaded once at
// process start; fetchers never mutate it.
type Source struct {
	Name        string
	BaseURL     string
	FeedURL     string
	Kind        Kind
	TrustWeight float64
	MinInterval time.Duration
}

// Article is one normalized news record. Never mutated after creation;
// ContentHash is the dedupe fingerprint over normalized title+body.
type Article struct {
	ID          string    `json:"id"`
	SourceName  string    `json:"source"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	BodyExcerpt string    `json:"body_excerpt"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	ContentHash string    `json:"content_hash"`
}

// Fetcher abstracts one configured source. Fetch is a single finite pass:
// per-item parse failures are skipped, a robots disallow surfaces as
// ErrPolicyDisallowed with zero articles.
type Fetcher interface {
	Source() Source
	Fetch(ctx context.Context, since time.Time) ([]Article, error)
}

var (
	// ErrPolicyDisallowed means robots.txt blocks the source. A skip, not a
	// failure: the run continues with the remaining sources.
	ErrPolicyDisallowed = errors.New("robots policy disallows source")

	// ErrFetchFailed wraps transient network/5xx failures after retries are
	// exhausted.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrParseFailed marks a feed or listing body that could not be parsed
	// at all. Individual bad entries are skipped without it.
	ErrParseFailed = errors.New("parse failed")
)
