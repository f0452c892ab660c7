package collector

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ozel/cryptowire/internal/normalize"
)

// RSSFetcher pulls one feed per run, politely: robots first, then the
// per-source throttle, then a single bounded request.
type RSSFetcher struct {
	src       Source
	client    *http.Client
	robots    *RobotsCache
	throttle  *SourceThrottle
	userAgent string
	maxItems  int
}

func NewRSSFetcher(src Source, client *http.Client, robots *RobotsCache, throttle *SourceThrottle, userAgent string, maxItems int) *RSSFetcher {
	return &RSSFetcher{
		src:       src,
		client:    client,
		robots:    robots,
		throttle:  throttle,
		userAgent: userAgent,
		maxItems:  maxItems,
	}
}

func (f *RSSFetcher) Source() Source { return f.src }

func (f *RSSFetcher) Fetch(ctx context.Context, since time.Time) ([]Article, error) {
	allowed, _, err := f.robots.Allowed(ctx, f.src.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.src.Name, err)
	}
	if !allowed {
		return nil, fmt.Errorf("%s: %w", f.src.Name, ErrPolicyDisallowed)
	}

	if err := f.throttle.Wait(ctx, f.src); err != nil {
		return nil, fmt.Errorf("%s: throttle: %w", f.src.Name, err)
	}

	body, err := fetchBody(ctx, f.client, f.src.FeedURL, f.userAgent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.src.Name, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", f.src.Name, ErrParseFailed, err)
	}

	fetchedAt := time.Now().UTC()
	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		// One bad entry never aborts the feed.
		if item == nil || item.Title == "" || item.Link == "" {
			log.Printf("%s: skip feed entry without title/link", f.src.Name)
			continue
		}

		publishedAt := fetchedAt
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			publishedAt = item.UpdatedParsed.UTC()
		}
		if !since.IsZero() && publishedAt.Before(since) {
			continue
		}

		title := normalize.Text(item.Title)
		excerpt := normalize.Text(item.Description)
		hash := normalize.Fingerprint(title, excerpt)

		articles = append(articles, Article{
			ID:          hash[:16],
			SourceName:  f.src.Name,
			URL:         normalize.CanonicalURL(item.Link),
			Title:       title,
			BodyExcerpt: excerpt,
			PublishedAt: publishedAt,
			FetchedAt:   fetchedAt,
			ContentHash: hash,
		})
		if len(articles) >= f.maxItems {
			break
		}
	}

	log.Printf("%s: feed yielded %d articles", f.src.Name, len(articles))
	return articles, nil
}
