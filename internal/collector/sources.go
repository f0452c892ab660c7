package collector

import "time"

// DefaultSources is the crawl catalog: public crypto publishers, RSS when
// available, listing pages otherwise. Trust weights feed the confidence
// scorer and stay within [0,1]; cryptopanic aggregates many desks and gets
// the ceiling.
func DefaultSources() []Source {
	return []Source{
		{Name: "coindesk", BaseURL: "https://www.coindesk.com", FeedURL: "https://www.coindesk.com/arc/outboundfeeds/rss/?output=xml", Kind: KindRSS, TrustWeight: 1.0, MinInterval: 2 * time.Second},
		{Name: "theblock", BaseURL: "https://www.theblock.co", FeedURL: "https://www.theblock.co/rss.xml", Kind: KindRSS, TrustWeight: 1.0, MinInterval: 2 * time.Second},
		{Name: "blockworks", BaseURL: "https://blockworks.co", FeedURL: "https://blockworks.co/feed", Kind: KindRSS, TrustWeight: 1.0, MinInterval: 2 * time.Second},
		{Name: "cointelegraph", BaseURL: "https://cointelegraph.com", FeedURL: "https://cointelegraph.com/rss", Kind: KindRSS, TrustWeight: 0.8, MinInterval: 2 * time.Second},
		{Name: "defiant", BaseURL: "https://thedefiant.io", FeedURL: "https://thedefiant.io/feed", Kind: KindRSS, TrustWeight: 0.8, MinInterval: 2 * time.Second},
		{Name: "dlnews", BaseURL: "https://dlnews.com", FeedURL: "https://dlnews.com/feed", Kind: KindRSS, TrustWeight: 0.8, MinInterval: 2 * time.Second},
		{Name: "protos", BaseURL: "https://protos.com", FeedURL: "https://protos.com/feed", Kind: KindRSS, TrustWeight: 0.7, MinInterval: 2 * time.Second},
		{Name: "decrypt", BaseURL: "https://decrypt.co", FeedURL: "https://decrypt.co/feed", Kind: KindRSS, TrustWeight: 0.8, MinInterval: 2 * time.Second},
		{Name: "glassnode", BaseURL: "https://insights.glassnode.com", FeedURL: "https://insights.glassnode.com/rss/", Kind: KindRSS, TrustWeight: 1.0, MinInterval: 2 * time.Second},
		{Name: "cryptopanic", BaseURL: "https://cryptopanic.com", FeedURL: "https://cryptopanic.com/news/", Kind: KindHTML, TrustWeight: 1.0, MinInterval: 3 * time.Second},
		{Name: "messari", BaseURL: "https://messari.io", FeedURL: "https://messari.io/news", Kind: KindHTML, TrustWeight: 1.0, MinInterval: 3 * time.Second},
	}
}
