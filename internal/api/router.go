package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ozel/cryptowire/internal/config"
	"github.com/ozel/cryptowire/internal/market"
	"github.com/ozel/cryptowire/internal/pipeline"
	"github.com/ozel/cryptowire/internal/storage"
)

// Runner triggers one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Response, error)
}

type Server struct {
	store  *storage.Store
	runner Runner
	market *market.Client
	cfg    *config.Config
}

func NewServer(store *storage.Store, runner Runner, marketClient *market.Client, cfg *config.Config) *Server {
	return &Server{store: store, runner: runner, market: marketClient, cfg: cfg}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/news/run", s.runNews)
		v1.GET("/clusters", s.listClusters)
		v1.GET("/store", s.listStore)
		v1.POST("/market/snapshot", s.marketSnapshot)
		v1.POST("/admin/cleanup", s.adminCleanup)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// runNews executes the full pipeline under the configured run deadline and
// returns the cluster response, or a structured error naming the failed
// stage and whether a retry makes sense.
func (s *Server) runNews(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RunTimeout)
	defer cancel()

	resp, err := s.runner.Run(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			c.JSON(status, gin.H{
				"error":     stageErr.Err.Error(),
				"stage":     stageErr.Stage,
				"retriable": stageErr.Retriable,
			})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) listClusters(c *gin.Context) {
	date := c.DefaultQuery("date", time.Now().UTC().Format("20060102"))
	limit := intQuery(c, "limit", 50)

	payloads, err := s.store.GetPayloads(c.Request.Context(), "news/clustered/"+date+"/", limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal_error", "message": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "success", "data": payloads})
}

func (s *Server) listStore(c *gin.Context) {
	prefix := c.Query("prefix")
	limit := intQuery(c, "limit", 100)

	metas, err := s.store.List(c.Request.Context(), prefix, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal_error", "message": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "success", "data": metas})
}

type marketSnapshotRequest struct {
	Exchanges   []string `json:"exchanges" binding:"required,min=1"`
	Symbols     []string `json:"symbols" binding:"required,min=1"`
	Granularity string   `json:"granularity" binding:"required"`
	Limit       int      `json:"limit"`
}

func (s *Server) marketSnapshot(c *gin.Context) {
	var req marketSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 200
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RunTimeout)
	defer cancel()

	var snapshots []market.Snapshot
	for _, exchange := range req.Exchanges {
		var (
			snaps []market.Snapshot
			err   error
		)
		switch exchange {
		case "binance":
			snaps, err = s.market.FetchBinance(ctx, req.Symbols, req.Granularity, req.Limit)
		case "bybit":
			snaps, err = s.market.FetchBybit(ctx, req.Symbols, req.Granularity, req.Limit)
		default:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unsupported exchange: " + exchange})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		snapshots = append(snapshots, snaps...)
	}

	objects := make([]storage.Object, 0, len(snapshots))
	for _, snap := range snapshots {
		objects = append(objects, storage.Object{
			Path:          storage.MarketSnapshotPath(snap.Source, snap.Symbol, snap.FetchedAt),
			Payload:       snap,
			TTLDays:       s.cfg.StorageTTLDays,
			SchemaVersion: 1,
		})
	}
	if err := s.store.ArchiveRun(ctx, objects); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "stage": pipeline.StageArchiving, "retriable": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{"schema_version": 1, "snapshots": snapshots, "generated_at": time.Now().UTC()})
}

// adminCleanup runs the TTL sweep on demand; the scheduler triggers the
// same sweep nightly.
func (s *Server) adminCleanup(c *gin.Context) {
	inspected, deleted, err := s.store.DeleteOlderThan(c.Request.Context(), storage.CleanupPrefixes(), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inspected": inspected, "deleted": deleted})
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
