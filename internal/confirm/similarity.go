// Package confirm groups deduplicated articles into candidate event
// clusters and scores how strongly independent sources corroborate them.
package confirm

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Similarity scores two normalized titles in [0,1]. Pluggable so the
// clustering pass is decoupled from the text-matching technique.
type Similarity interface {
	Score(a, b string) float64
}

// TokenSortSimilarity sorts the tokens of both titles before taking a
// Levenshtein ratio, making it insensitive to word order.
type TokenSortSimilarity struct {
	lev *metrics.Levenshtein
}

func NewTokenSortSimilarity() *TokenSortSimilarity {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	return &TokenSortSimilarity{lev: lev}
}

func (t *TokenSortSimilarity) Score(a, b string) float64 {
	// Blocking pre-filter: titles without a single common token cannot
	// clear any useful threshold, so skip the expensive metric.
	if !sharesToken(a, b) {
		return 0
	}
	return strutil.Similarity(sortTokens(a), sortTokens(b), t.lev)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func sharesToken(a, b string) bool {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(a) {
		set[tok] = struct{}{}
	}
	for _, tok := range strings.Fields(b) {
		if _, ok := set[tok]; ok {
			return true
		}
	}
	return false
}
