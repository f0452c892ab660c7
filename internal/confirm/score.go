package confirm

import (
	"math"
	"time"

	"github.com/ozel/cryptowire/internal/collector"
)

const defaultTrustWeight = 0.5

// Scorer turns a cluster into a confidence score in [0,1]. Deterministic
// given the members, the trust weights and the evaluation time.
type Scorer struct {
	weights  map[string]float64
	halfLife time.Duration
	floor    float64
	now      func() time.Time
}

func NewScorer(sources []collector.Source, halfLife time.Duration, floor float64) *Scorer {
	weights := make(map[string]float64, len(sources))
	for _, s := range sources {
		weights[s.Name] = s.TrustWeight
	}
	return &Scorer{weights: weights, halfLife: halfLife, floor: floor, now: time.Now}
}

// Score saturates over the summed trust of the distinct sources, so one
// low-trust source stays low while several high-trust sources approach 1,
// then decays by recency toward a floor (never to zero, so a confirmed but
// stale event remains retrievable). Adding a distinct source can only grow
// the trust sum, and can only move latest-published forward, so the score
// never decreases.
func (s *Scorer) Score(c Cluster) float64 {
	distinct := make(map[string]struct{}, len(c.Members))
	trustSum := 0.0
	for _, m := range c.Members {
		if _, ok := distinct[m.SourceName]; ok {
			continue
		}
		distinct[m.SourceName] = struct{}{}
		w, ok := s.weights[m.SourceName]
		if !ok {
			w = defaultTrustWeight
		}
		trustSum += w
	}

	base := 1 - math.Exp(-trustSum)
	score := base * s.decay(c.LatestPublishedAt)

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return math.Round(score*10000) / 10000
}

func (s *Scorer) decay(latest time.Time) float64 {
	if s.halfLife <= 0 {
		return 1
	}
	age := s.now().Sub(latest)
	if age < 0 {
		age = 0
	}
	return s.floor + (1-s.floor)*math.Exp(-float64(age)/float64(s.halfLife))
}
