package main

import (
	"context"
	"log"
	"time"

	"github.com/ozel/cryptowire/internal/collector"
	"github.com/ozel/cryptowire/internal/config"
	"github.com/ozel/cryptowire/internal/confirm"
	"github.com/ozel/cryptowire/internal/dedupe"
	"github.com/ozel/cryptowire/internal/pipeline"
	"github.com/ozel/cryptowire/internal/storage"
)

// One-shot collection entrypoint: runs the full pipeline once and exits.
// Useful for manual triggers and cron-style deployments.
func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	sources := collector.DefaultSources()
	httpClient := collector.NewHTTPClient(cfg.RequestTimeout)
	robots := collector.NewRobotsCache(httpClient, cfg.UserAgent)
	throttle := collector.NewSourceThrottle()

	fetchers := collector.NewFetchers(sources, httpClient, robots, throttle, cfg.UserAgent, cfg.MaxPerSource, cfg.RequestTimeout, nil)

	ttl := time.Duration(cfg.StorageTTLDays) * 24 * time.Hour
	deduper := dedupe.New(dedupe.NewRedisSeen(store.Redis, ttl))
	clusterer := confirm.NewClusterer(confirm.NewTokenSortSimilarity(), cfg.SimilarityThreshold, cfg.ClusterWindow)
	scorer := confirm.NewScorer(sources, cfg.DecayHalfLife, cfg.DecayFloor)

	orch := pipeline.New(fetchers, deduper, clusterer, scorer, store, cfg.StorageTTLDays, cfg.MinConfidence, cfg.Lookback)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	resp, err := orch.Run(ctx)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
	log.Printf("run %s done: %d clusters, %d skips", resp.RequestID, len(resp.Clusters), len(resp.Skips))
}
