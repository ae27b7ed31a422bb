package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/FrenchMajesty/yuko/rest"
	"github.com/FrenchMajesty/yuko/stats"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/gin-gonic/gin"
)

// Source is the dispatcher state the server exposes. *rest.Manager implements it.
type Source interface {
	GetStats() *rest.Stats
	BucketStates() []rest.BucketState
	Events() <-chan *rest.Event
}

// Server is a read-only debug surface over a dispatcher: stats, bucket states and a live
// event stream.
type Server struct {
	source      Source
	recorder    stats.Recorder
	logger      logger.Logger
	engine      *gin.Engine
	broadcaster *broadcaster
	httpServer  *http.Server
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder adds GET /outcomes backed by the recorder's counters
func WithRecorder(recorder stats.Recorder) Option {
	return func(s *Server) { s.recorder = recorder }
}

// New builds the server and starts relaying source events to SSE subscribers
func New(source Source, opts ...Option) *Server {
	s := &Server{
		source: source,
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.WithPrefix(s.logger, "server")
	s.broadcaster = newBroadcaster(s.logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", s.health)
	engine.GET("/stats", s.stats)
	engine.GET("/buckets", s.buckets)
	engine.GET("/events", s.events)
	if s.recorder != nil {
		engine.GET("/outcomes", s.outcomes)
	}
	s.engine = engine

	go s.broadcaster.run(source.Events())
	return s
}

// Handler exposes the routes, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on addr in the background. Listen errors other than a shutdown are logged.
func (s *Server) Start(addr string) {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Printf("listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("listen failed: %v", err)
		}
	}()
}

// Shutdown ends every event stream, then stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.broadcaster.close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.GetStats())
}

func (s *Server) buckets(c *gin.Context) {
	states := s.source.BucketStates()
	if limited := c.Query("limited"); limited == "true" {
		filtered := []rest.BucketState{}
		for _, state := range states {
			if state.Limited {
				filtered = append(filtered, state)
			}
		}
		states = filtered
	}
	c.JSON(http.StatusOK, gin.H{"buckets": states, "count": len(states)})
}

func (s *Server) outcomes(c *gin.Context) {
	counters, err := stats.TotalOf(c.Request.Context(), s.recorder)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": counters, "total": counters.Total()})
}
