package collector

import (
	"net/http"
	"time"
)

// NewFetchers builds one fetcher per catalog source, sharing the robots
// cache, the throttle and the HTTP client.
func NewFetchers(sources []Source, client *http.Client, robots *RobotsCache, throttle *SourceThrottle, userAgent string, maxItems int, timeout time.Duration, extractor *BrowserExtractor) []Fetcher {
	fetchers := make([]Fetcher, 0, len(sources))
	for _, src := range sources {
		switch src.Kind {
		case KindHTML:
			fetchers = append(fetchers, NewHTMLFetcher(src, robots, throttle, userAgent, maxItems, timeout, extractor))
		default:
			fetchers = append(fetchers, NewRSSFetcher(src, client, robots, throttle, userAgent, maxItems))
		}
	}
	return fetchers
}
