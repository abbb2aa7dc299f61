// Package admin exposes a small HTTP surface for poking at the daemon:
// health, runner status, ledger stats, and a manual run trigger.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ChannelRelay/internal/domain"
)

// Pipeline is what the admin surface needs from the run scheduler.
type Pipeline interface {
	Snapshot() domain.RunnerStatus
	KickOff() bool
}

// Ledger is the read side of the publication store.
type Ledger interface {
	Stats(ctx context.Context) (domain.StoreStats, error)
	Recent(ctx context.Context, limit int) ([]domain.PublishedRecord, error)
}

// Server hosts the admin endpoints on its own listener.
type Server struct {
	addr     string
	pipeline Pipeline
	ledger   Ledger
	logger   *slog.Logger
	srv      *http.Server
}

// NewServer wires the surface; an empty addr disables it.
func NewServer(addr string, pipeline Pipeline, ledger Ledger, logger *slog.Logger) *Server {
	return &Server{addr: addr, pipeline: pipeline, ledger: ledger, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/stats", s.handleStats)
		api.GET("/recent", s.handleRecent)
		api.POST("/run", s.handleRun)
	}
	return r
}

// Start brings the listener up in the background.
func (s *Server) Start() {
	if s.addr == "" {
		return
	}
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.info("admin surface listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error("admin surface failed", "error", err)
			}
		}
	}()
}

// Shutdown stops the listener, letting in-flight requests drain.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.pipeline.Snapshot()
	payload := gin.H{
		"running":       snap.Running,
		"busy":          snap.Busy,
		"interval":      snap.Interval.String(),
		"started_at":    snap.StartedAt,
		"ticks_started": snap.TicksStarted,
		"ticks_skipped": snap.TicksSkipped,
	}
	if snap.LastTick != nil {
		tick := gin.H{
			"run_id":      snap.LastTick.RunID,
			"status":      snap.LastTick.Status,
			"stage":       snap.LastTick.Stage,
			"candidates":  snap.LastTick.Candidates,
			"fresh":       snap.LastTick.Fresh,
			"title":       snap.LastTick.Title,
			"message_id":  snap.LastTick.MessageID,
			"finished_at": snap.LastTick.FinishedAt,
			"took":        snap.LastTick.Duration().String(),
		}
		if snap.LastTick.Err != nil {
			tick["error"] = snap.LastTick.Err.Error()
		}
		payload["last_tick"] = tick
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.ledger.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":     stats.Total,
		"by_kind":   stats.ByKind,
		"last_week": stats.LastWeek,
	})
}

func (s *Server) handleRecent(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}

	records, err := s.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, 0, len(records))
	for _, rec := range records {
		items = append(items, gin.H{
			"id":           rec.ID,
			"title":        rec.Title,
			"source_url":   rec.Locator,
			"source_kind":  rec.Kind,
			"published_at": rec.PublishedAt,
			"message_id":   rec.MessageID,
			"reactions":    rec.Reactions,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleRun(c *gin.Context) {
	if !s.pipeline.KickOff() {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in flight"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "run started"})
}

func (s *Server) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
