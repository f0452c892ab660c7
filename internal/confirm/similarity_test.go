package confirm

import "testing"

func TestTokenSortIgnoresWordOrder(t *testing.T) {
	sim := NewTokenSortSimilarity()

	a := sim.Score("sec approves bitcoin etf", "bitcoin etf approves sec")
	if a < 0.999 {
		t.Fatalf("reordered tokens should score ~1, got %f", a)
	}
}

func TestTokenSortSeparatesUnrelatedTitles(t *testing.T) {
	sim := NewTokenSortSimilarity()

	same := sim.Score("btc hits $70k", "btc hits $70k today")
	other := sim.Score("btc hits $70k", "unrelated: eth gas fees drop")
	if same <= other {
		t.Fatalf("near-duplicate (%f) should outscore unrelated (%f)", same, other)
	}
	if other > 0.5 {
		t.Fatalf("unrelated titles scored too high: %f", other)
	}
}

func TestSharesTokenPreFilter(t *testing.T) {
	if !sharesToken("btc hits 70k", "btc dips") {
		t.Fatalf("common token should pass the pre-filter")
	}
	if sharesToken("btc hits 70k", "eth gas fees") {
		t.Fatalf("disjoint titles should fail the pre-filter")
	}
}
