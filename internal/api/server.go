// Package api exposes the backtest service over HTTP: REST endpoints for
// starting and inspecting runs, and a WebSocket stream of engine events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backlab/internal/backtest"
	"backlab/internal/strategy"
)

// Server hosts the REST API and the event WebSocket.
type Server struct {
	svc     *backtest.Service
	presets *strategy.Registry
	hub     *Hub
	http    *http.Server
	log     *slog.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, svc *backtest.Service) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		svc:     svc,
		presets: strategy.Builtins(),
		hub:     NewHub(),
		log:     slog.Default().With("component", "api"),
	}

	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())
	s.registerRoutes(router)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/backtests", s.handleStartBacktest)
		apiGroup.GET("/backtests", s.handleListBacktests)
		apiGroup.GET("/backtests/:id", s.handleGetBacktest)
		apiGroup.DELETE("/backtests/:id", s.handleDeleteBacktest)
		apiGroup.POST("/backtests/cancel", s.handleCancelBacktest)
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.POST("/bars/preview", s.handlePreviewBars)
		apiGroup.GET("/strategies", s.handleListStrategies)
		apiGroup.GET("/strategies/:name", s.handleGetStrategy)
	}
	router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// corsMiddleware allows the dashboard frontend to call the API from another
// origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// ListenAndServe starts the WebSocket hub, the event forwarder, and the
// HTTP listener. It blocks until the context is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go s.hub.Run()
	go s.forwardEvents(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.log.Info("api listening", "addr", s.http.Addr)

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown performs a graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// forwardEvents relays engine events from the service to WebSocket clients
// as JSON.
func (s *Server) forwardEvents(ctx context.Context) {
	events, unsubscribe := s.svc.Subscribe(256)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.log.Warn("encoding event failed", "err", err)
				continue
			}
			s.hub.Broadcast(payload)
		}
	}
}
