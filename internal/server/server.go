// Package server exposes the pipeline over HTTP and WebSocket using gin.
// Reads are served from the aggregation engine, writes go through the same
// ingestion path as the configured feed, and live streams relay broadcast
// subscriptions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/broadcast"
	candlev1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/candle/v1"
	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/config"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/metrics"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/timescale"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/util"
)

// Service is the pipeline surface the transport needs.
type Service interface {
	Ingest(tick tickv1.Tick) error
	QueryRange(symbol string, g interval.Granularity, start, end time.Time, limit int) []candlev1.Candle
	Subscribe(symbol string, topic broadcast.Topic) *broadcast.Subscription
	SubscriptionStats() map[broadcast.Topic]int
	LatestTick(ctx context.Context, symbol string) (*tickv1.Tick, error)
	TickHistory(ctx context.Context, filter tickv1.Filter) ([]*tickv1.Tick, error)
	UpdateTick(ctx context.Context, symbol string, ts time.Time, price float64) (bool, error)
	DeleteTick(ctx context.Context, symbol string, ts time.Time) (bool, error)
	DeleteTickRange(ctx context.Context, symbol string, from, to time.Time) (int64, error)
}

// Server is the HTTP/WS front of the service.
type Server struct {
	cfg     config.AppConfig
	service Service
	db      timescale.Client
	logger  logger.Interface
	metrics *metrics.Metrics

	dayStartHour int
}

// New creates a server. db may be nil in tests; /health then skips the
// storage probe.
func New(cfg config.AppConfig, dayStartHour int, svc Service, db timescale.Client, log logger.Interface, m *metrics.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		service:      svc,
		db:           db,
		logger:       log,
		metrics:      m,
		dayStartHour: dayStartHour,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID)

	r.GET("/health", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	ohlc := r.Group("/ohlc")
	ohlc.GET("/minute", s.ohlcHandler(interval.GranularityMinute))
	ohlc.GET("/hour", s.ohlcHandler(interval.GranularityHour))
	ohlc.GET("/day", s.ohlcHandler(interval.GranularityDay))
	ohlc.GET("/custom-day", s.handleCustomDayOHLC)

	ticks := r.Group("/ticks")
	ticks.POST("", s.handleCreateTick)
	ticks.POST("/bulk", s.handleCreateTicksBulk)
	ticks.GET("", s.handleTickHistory)
	ticks.GET("/latest", s.handleLatestTick)
	ticks.PUT("", s.handleUpdateTick)
	ticks.DELETE("", s.handleDeleteTickRange)
	ticks.DELETE("/:symbol/:time", s.handleDeleteTick)

	ws := r.Group("/ws")
	ws.GET("/ticks", s.handleWSTicks)
	ws.GET("/ohlc/:granularity", s.handleWSOHLC)
	ws.GET("/stats", s.handleWSStats)

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("http server listening", logger.Field{Key: "port", Value: s.cfg.Port})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestID seeds the request context with an id so log lines from one
// request can be correlated. An incoming X-Request-ID is honored, otherwise
// a fresh one is generated, and either way the id is echoed in the response.
func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Request = c.Request.WithContext(util.WithRequestID(c.Request.Context(), id))
	c.Header("X-Request-ID", id)
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "storage": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
