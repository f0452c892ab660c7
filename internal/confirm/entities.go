package confirm

import (
	"regexp"
	"sort"
	"strings"
)

// entityPatterns tag the assets and topics a cluster touches, for the
// tool-client response. Matching is rule-based, not NER.
var entityPatterns = map[string]*regexp.Regexp{
	"BTC":          regexp.MustCompile(`(?i)\b(btc|bitcoin)\b`),
	"ETH":          regexp.MustCompile(`(?i)\b(eth|ethereum)\b`),
	"SOL":          regexp.MustCompile(`(?i)\b(sol|solana)\b`),
	"XRP":          regexp.MustCompile(`(?i)\bxrp\b`),
	"SEC":          regexp.MustCompile(`(?i)\bsec\b`),
	"ETF":          regexp.MustCompile(`(?i)\betf\b`),
	"HACK":         regexp.MustCompile(`(?i)\b(hack|exploit)\b`),
	"FUNDING RATE": regexp.MustCompile(`(?i)\bfunding rate\b`),
	"LISTING":      regexp.MustCompile(`(?i)\blisting\b`),
}

func extractEntities(titles []string) []string {
	text := strings.Join(titles, " ")
	var out []string
	for tag, re := range entityPatterns {
		if re.MatchString(text) {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}
