package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"backlab/internal/backtest"
	"backlab/internal/domain"
	"backlab/internal/engine"
	"backlab/internal/feed"
	"backlab/internal/store"
)

// runRequest is the body of POST /api/backtests. Preset optionally names a
// built-in strategy used in place of Config.Strategy; CSV is an optional
// inline OHLCV upload used with the file data source.
type runRequest struct {
	Config domain.BacktestConfig `json:"config"`
	Preset string                `json:"preset,omitempty"`
	CSV    string                `json:"csv,omitempty"`
}

func (r *runRequest) uploadedBars() ([]domain.Bar, error) {
	if r.CSV == "" {
		return nil, nil
	}
	return feed.ParseCSV(strings.NewReader(r.CSV))
}

// resolve applies the named preset, if any, to the request's config.
func (s *Server) resolve(req *runRequest) error {
	if req.Preset == "" {
		return nil
	}
	preset, ok := s.presets.Get(req.Preset)
	if !ok {
		return fmt.Errorf("unknown strategy preset %q", req.Preset)
	}
	req.Config.Strategy = preset
	return nil
}

// handleStartBacktest launches a run in the background and returns its ID.
// Progress streams over the WebSocket; the result is fetched by ID once
// the run completes.
func (s *Server) handleStartBacktest(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.resolve(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uploaded, err := req.uploadedBars()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.svc.Start(req.Config, uploaded)
	if err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

// handleListBacktests returns the most recent run summaries.
func (s *Server) handleListBacktests(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.svc.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// handleGetBacktest returns a full persisted run.
func (s *Server) handleGetBacktest(c *gin.Context) {
	run, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// handleDeleteBacktest removes a persisted run.
func (s *Server) handleDeleteBacktest(c *gin.Context) {
	if err := s.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleCancelBacktest stops the in-flight run, if any.
func (s *Server) handleCancelBacktest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": s.svc.Cancel()})
}

// handleStatus reports whether a run is in flight.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": s.svc.Running()})
}

// handleListStrategies returns the names of the built-in strategy presets.
func (s *Server) handleListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.presets.List()})
}

// handleGetStrategy returns a full preset definition.
func (s *Server) handleGetStrategy(c *gin.Context) {
	preset, ok := s.presets.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown strategy preset"})
		return
	}
	c.JSON(http.StatusOK, preset)
}

// handlePreviewBars resolves the bars a config would replay without
// running a backtest, so the dashboard can chart the series up front.
func (s *Server) handlePreviewBars(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	uploaded, err := req.uploadedBars()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bars, err := s.svc.Preview(c.Request.Context(), req.Config, uploaded)
	if err != nil {
		if errors.Is(err, feed.ErrInsufficientData) ||
			errors.Is(err, backtest.ErrNoExchangeFeed) ||
			errors.Is(err, backtest.ErrNoUploadedBars) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bars": bars})
}
