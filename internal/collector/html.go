package collector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/ozel/cryptowire/internal/normalize"
)

// browserHydrateCap bounds how many listing entries the headless fallback
// may visit per run; extraction is expensive.
const browserHydrateCap = 5

// HTMLFetcher crawls a listing page for sources without a feed. Parsing is
// best-effort against common article markup; entries that do not yield a
// title and link are skipped, never fatal.
type HTMLFetcher struct {
	src       Source
	robots    *RobotsCache
	throttle  *SourceThrottle
	userAgent string
	maxItems  int
	timeout   time.Duration
	extractor *BrowserExtractor
}

func NewHTMLFetcher(src Source, robots *RobotsCache, throttle *SourceThrottle, userAgent string, maxItems int, timeout time.Duration, extractor *BrowserExtractor) *HTMLFetcher {
	return &HTMLFetcher{
		src:       src,
		robots:    robots,
		throttle:  throttle,
		userAgent: userAgent,
		maxItems:  maxItems,
		timeout:   timeout,
		extractor: extractor,
	}
}

func (f *HTMLFetcher) Source() Source { return f.src }

func (f *HTMLFetcher) Fetch(ctx context.Context, since time.Time) ([]Article, error) {
	listingURL := f.src.FeedURL
	if listingURL == "" {
		listingURL = f.src.BaseURL
	}

	allowed, _, err := f.robots.Allowed(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.src.Name, err)
	}
	if !allowed {
		return nil, fmt.Errorf("%s: %w", f.src.Name, ErrPolicyDisallowed)
	}

	if err := f.throttle.Wait(ctx, f.src); err != nil {
		return nil, fmt.Errorf("%s: throttle: %w", f.src.Name, err)
	}

	host, err := hostOf(listingURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.src.Name, err)
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowedDomains(host, "www."+host),
	)
	c.SetRequestTimeout(f.timeout)
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: f.src.MinInterval, Parallelism: 1}); err != nil {
		return nil, fmt.Errorf("%s: limit rule: %w", f.src.Name, err)
	}

	fetchedAt := time.Now().UTC()
	articles := make([]Article, 0, f.maxItems)

	c.OnHTML("article, li[class*='news'], div[class*='news-row'], div[class*='post-card']", func(e *colly.HTMLElement) {
		if len(articles) >= f.maxItems {
			return
		}

		title := normalize.Text(e.ChildText("h1, h2, h3, a[class*='title']"))
		if title == "" {
			title = normalize.Text(e.ChildText("a"))
		}
		link := e.ChildAttr("a[href]", "href")
		if title == "" || link == "" {
			return
		}
		link = e.Request.AbsoluteURL(link)

		publishedAt := parseListingTime(e, fetchedAt)
		if !since.IsZero() && publishedAt.Before(since) {
			return
		}

		excerpt := normalize.Text(e.ChildText("p"))
		if excerpt == "" {
			excerpt = firstLongText(e.DOM, 40, title)
		}

		hash := normalize.Fingerprint(title, excerpt)
		articles = append(articles, Article{
			ID:          hash[:16],
			SourceName:  f.src.Name,
			URL:         normalize.CanonicalURL(link),
			Title:       title,
			BodyExcerpt: excerpt,
			PublishedAt: publishedAt,
			FetchedAt:   fetchedAt,
			ContentHash: hash,
		})
	})

	if err := c.Visit(listingURL); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", f.src.Name, ErrFetchFailed, err)
	}
	c.Wait()

	f.hydrateExcerpts(ctx, articles)

	log.Printf("%s: listing yielded %d articles", f.src.Name, len(articles))
	return articles, nil
}

// hydrateExcerpts fills empty excerpts through the headless extractor, when
// configured. Failures leave the excerpt empty; the article still counts.
func (f *HTMLFetcher) hydrateExcerpts(ctx context.Context, articles []Article) {
	if f.extractor == nil {
		return
	}
	hydrated := 0
	for i := range articles {
		if articles[i].BodyExcerpt != "" || hydrated >= browserHydrateCap {
			continue
		}
		if err := f.throttle.Wait(ctx, f.src); err != nil {
			return
		}
		text, err := f.extractor.ExtractText(ctx, articles[i].URL, 600)
		if err != nil {
			log.Printf("%s: browser extract %s: %v", f.src.Name, articles[i].URL, err)
			continue
		}
		articles[i].BodyExcerpt = text
		articles[i].ContentHash = normalize.Fingerprint(articles[i].Title, text)
		articles[i].ID = articles[i].ContentHash[:16]
		hydrated++
	}
}

func parseListingTime(e *colly.HTMLElement, fallback time.Time) time.Time {
	raw := e.ChildAttr("time", "datetime")
	if raw == "" {
		raw = normalize.Text(e.ChildText("time"))
	}
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// firstLongText picks the longest non-title text block inside the entry,
// the usual spot for a teaser paragraph.
func firstLongText(sel *goquery.Selection, minLen int, exclude string) string {
	var best string
	sel.Find("div, span").Each(func(_ int, s *goquery.Selection) {
		t := normalize.Text(s.Text())
		if len(t) < minLen || t == exclude {
			return
		}
		if len(t) > len(best) {
			best = t
		}
	})
	return best
}

// hostOf returns the hostname without port or www prefix; colly matches
// allowed domains against the bare hostname.
func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(u.Hostname(), "www."), nil
}
