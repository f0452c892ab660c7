package confirm

import (
	"time"

	"github.com/google/uuid"

	"github.com/ozel/cryptowire/internal/collector"
	"github.com/ozel/cryptowire/internal/normalize"
)

// Cluster is a set of articles believed to report the same event. Built in
// a single clustering pass and immutable afterwards; each run produces a
// fresh cluster set.
type Cluster struct {
	ClusterID           string              `json:"cluster_id"`
	Members             []collector.Article `json:"-"`
	MemberArticleIDs    []string            `json:"member_article_ids"`
	RepresentativeTitle string              `json:"representative_title"`
	EarliestPublishedAt time.Time           `json:"earliest_published_at"`
	LatestPublishedAt   time.Time           `json:"latest_published_at"`
	DistinctSourceCount int                 `json:"distinct_source_count"`
	ConfidenceScore     float64             `json:"confidence_score"`
	Entities            []string            `json:"entities,omitempty"`
	Links               []ClusterLink       `json:"links"`
}

type ClusterLink struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

type Clusterer struct {
	sim       Similarity
	threshold float64
	window    time.Duration
}

func NewClusterer(sim Similarity, threshold float64, window time.Duration) *Clusterer {
	return &Clusterer{sim: sim, threshold: threshold, window: window}
}

// building cluster state during the single pass
type protoCluster struct {
	members  []collector.Article
	titles   []string // normalized, parallel to members
	earliest time.Time
	latest   time.Time
}

// Cluster greedily agglomerates articles in discovery order. An article
// joins an existing cluster iff its best member similarity clears the
// threshold and its timestamp stays within the window of every member;
// ties go to the higher similarity, then to the cluster with the earlier
// first publication. Everything else becomes a singleton.
func (c *Clusterer) Cluster(articles []collector.Article) []Cluster {
	protos := make([]*protoCluster, 0, len(articles))

	for _, art := range articles {
		title := normalize.Title(art.Title)

		bestIdx := -1
		bestSim := 0.0
		for i, p := range protos {
			if !withinWindow(art.PublishedAt, p, c.window) {
				continue
			}
			sim := c.bestMemberSimilarity(title, p)
			if sim < c.threshold {
				continue
			}
			switch {
			case sim > bestSim:
				bestIdx, bestSim = i, sim
			case sim == bestSim && bestIdx >= 0 && p.earliest.Before(protos[bestIdx].earliest):
				bestIdx = i
			}
		}

		if bestIdx >= 0 {
			p := protos[bestIdx]
			p.members = append(p.members, art)
			p.titles = append(p.titles, title)
			if art.PublishedAt.Before(p.earliest) {
				p.earliest = art.PublishedAt
			}
			if art.PublishedAt.After(p.latest) {
				p.latest = art.PublishedAt
			}
			continue
		}

		protos = append(protos, &protoCluster{
			members:  []collector.Article{art},
			titles:   []string{title},
			earliest: art.PublishedAt,
			latest:   art.PublishedAt,
		})
	}

	out := make([]Cluster, 0, len(protos))
	for _, p := range protos {
		out = append(out, finalize(p))
	}
	return out
}

func (c *Clusterer) bestMemberSimilarity(title string, p *protoCluster) float64 {
	best := 0.0
	for _, member := range p.titles {
		if s := c.sim.Score(title, member); s > best {
			best = s
		}
	}
	return best
}

// withinWindow requires the candidate to sit inside the window of every
// current member; checking the interval endpoints is sufficient. Publishers
// backdate, so the candidate may precede the earliest member.
func withinWindow(t time.Time, p *protoCluster, window time.Duration) bool {
	return absDelta(t, p.earliest) <= window && absDelta(t, p.latest) <= window
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

func finalize(p *protoCluster) Cluster {
	sources := make(map[string]struct{}, len(p.members))
	links := make([]ClusterLink, 0, len(p.members))
	ids := make([]string, 0, len(p.members))
	titles := make([]string, 0, len(p.members))

	representative := p.members[0]
	for _, m := range p.members {
		sources[m.SourceName] = struct{}{}
		ids = append(ids, m.ID)
		titles = append(titles, m.Title)
		links = append(links, ClusterLink{Source: m.SourceName, URL: m.URL, Title: m.Title})
		if m.PublishedAt.Before(representative.PublishedAt) {
			representative = m
		}
	}

	return Cluster{
		ClusterID:           uuid.NewString(),
		Members:             p.members,
		MemberArticleIDs:    ids,
		RepresentativeTitle: representative.Title,
		EarliestPublishedAt: p.earliest,
		LatestPublishedAt:   p.latest,
		DistinctSourceCount: len(sources),
		Entities:            extractEntities(titles),
		Links:               links,
	}
}
