// Package scheduler drives periodic pipeline runs and the nightly TTL
// sweep over stored objects.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ozel/cryptowire/internal/pipeline"
	"github.com/ozel/cryptowire/internal/storage"
)

type Scheduler struct {
	cron       *cron.Cron
	orch       *pipeline.Orchestrator
	store      *storage.Store
	runTimeout time.Duration
}

func New(collectSpec, cleanupSpec string, orch *pipeline.Orchestrator, store *storage.Store, runTimeout time.Duration) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, orch: orch, store: store, runTimeout: runTimeout}

	if _, err := c.AddFunc(collectSpec, s.runOnce); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc(cleanupSpec, s.cleanup); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// Delay the first collection so startup traffic settles before the
	// crawl begins.
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce is the manual trigger used by cmd/collect.
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	resp, err := s.orch.Run(ctx)
	if err != nil {
		log.Printf("scheduled run failed: %v", err)
		return
	}
	log.Printf("scheduled run done: %d clusters, %d skips", len(resp.Clusters), len(resp.Skips))
}

func (s *Scheduler) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	inspected, deleted, err := s.store.DeleteOlderThan(ctx, storage.CleanupPrefixes(), time.Now().UTC())
	if err != nil {
		log.Printf("cleanup sweep failed: %v", err)
		return
	}
	log.Printf("cleanup sweep done: inspected=%d deleted=%d", inspected, deleted)
}
