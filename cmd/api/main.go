package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ozel/cryptowire/internal/api"
	"github.com/ozel/cryptowire/internal/collector"
	"github.com/ozel/cryptowire/internal/config"
	"github.com/ozel/cryptowire/internal/confirm"
	"github.com/ozel/cryptowire/internal/dedupe"
	"github.com/ozel/cryptowire/internal/market"
	"github.com/ozel/cryptowire/internal/pipeline"
	"github.com/ozel/cryptowire/internal/scheduler"
	"github.com/ozel/cryptowire/internal/storage"
)

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

	var extractor *collector.BrowserExtractor
	if cfg.BrowserExtract {
		extractor, err = collector.NewBrowserExtractor(context.Background())
		if err != nil {
			log.Printf("warn: browser extractor unavailable: %v", err)
		} else {
			defer extractor.Close()
		}
	}

	fetchers := collector.NewFetchers(sources, httpClient, robots, throttle, cfg.UserAgent, cfg.MaxPerSource, cfg.RequestTimeout, extractor)

	ttl := time.Duration(cfg.StorageTTLDays) * 24 * time.Hour
	deduper := dedupe.New(dedupe.NewRedisSeen(store.Redis, ttl))
	clusterer := confirm.NewClusterer(confirm.NewTokenSortSimilarity(), cfg.SimilarityThreshold, cfg.ClusterWindow)
	scorer := confirm.NewScorer(sources, cfg.DecayHalfLife, cfg.DecayFloor)

	orch := pipeline.New(fetchers, deduper, clusterer, scorer, store, cfg.StorageTTLDays, cfg.MinConfidence, cfg.Lookback)

	sched, err := scheduler.New(cfg.CollectCronSpec, cfg.CleanupCronSpec, orch, store, cfg.RunTimeout)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	r := gin.Default()
	r.Use(api.CorrelationMiddleware())
	if cfg.HMACSecret == "" {
		log.Printf("warn: HMAC_SHARED_SECRET not set, request signing disabled")
	}
	r.Use(api.HMACMiddleware(cfg.HMACSecret))

	server := api.NewServer(store, orch, market.NewClient(httpClient, cfg.UserAgent), cfg)
	server.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
