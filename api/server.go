package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/leakwatch/api/handlers"
	"github.com/OldStager01/leakwatch/api/middleware"
	"github.com/OldStager01/leakwatch/api/websocket"
	"github.com/OldStager01/leakwatch/internal/alerting"
	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/internal/engine"
	"github.com/OldStager01/leakwatch/internal/events"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/internal/metrics"
	"github.com/OldStager01/leakwatch/pkg/config"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const limiterCleanupInterval = time.Minute

// Dependencies are the components the API serves. Engine is required; the
// rest are optional and disable the routes or checks that need them.
type Dependencies struct {
	Engine   *engine.Engine
	Bus      *events.EventBus
	Alerts   handlers.AlertStore
	Feedback handlers.FeedbackStore
	Profiles baseline.Store
	Metrics  *metrics.Metrics
	Checks   map[string]handlers.HealthChecker

	ModelPath     string
	OnModelReload func(version string, err error)
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     *config.Config
	deps       Dependencies
	limiter    *middleware.RateLimiter
	wsHub      *websocket.Hub
	wsBridge   *websocket.EventBridge
	wsEvents   <-chan *models.Event
	cancel     context.CancelFunc
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.App.Mode == "test" {
		gin.SetMode(gin.TestMode)
	}

	if deps.Alerts == nil {
		deps.Alerts = alerting.NewMemoryStore(0)
	}

	s := &Server{
		router:  gin.New(),
		config:  cfg,
		deps:    deps,
		limiter: middleware.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst),
		wsHub:   websocket.NewHub(&cfg.WebSocket),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.wsHub.Run(ctx)
	go s.limiter.Run(ctx, limiterCleanupInterval)

	if deps.Bus != nil {
		s.wsEvents = deps.Bus.Subscribe(websocket.StreamedEventTypes()...)
		s.wsBridge = websocket.NewEventBridge(s.wsHub, s.wsEvents)
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) metricsPath() string {
	if s.config.Prometheus.Path != "" {
		return s.config.Prometheus.Path
	}
	return "/metrics"
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(middleware.CORSFromConfig(s.config.API.CORS)))
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger("/health/live", "/health/ready", s.metricsPath()))
	s.router.Use(middleware.RateLimit(s.limiter))
	s.router.Use(middleware.RequestSizeLimit(s.config.API.MaxBodyBytes))
}

func (s *Server) setupRoutes() {
	limits := handlers.Limits{
		DefaultLimit:    s.config.API.DefaultLimit,
		MaxLimit:        s.config.API.MaxLimit,
		MaxSeriesLength: s.config.API.MaxSeriesLength,
	}
	e := s.deps.Engine

	healthHandler := handlers.NewHealthHandler(s.deps.Checks)
	detectionHandler := handlers.NewDetectionHandler(e, limits)
	stateOpts := []handlers.StateOption{}
	if s.deps.Profiles != nil {
		stateOpts = append(stateOpts, handlers.WithProfileStore(s.deps.Profiles))
	}
	if s.deps.ModelPath != "" {
		stateOpts = append(stateOpts, handlers.WithModelReload(s.deps.ModelPath, s.deps.OnModelReload))
	}
	stateHandler := handlers.NewStateHandler(e, stateOpts...)
	feedbackHandler := handlers.NewFeedbackHandler(e, s.deps.Feedback)
	alertHandler := handlers.NewAlertHandler(s.deps.Alerts, e.InstallationID(), limits)

	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)

	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub))

	if s.config.Prometheus.Enabled && s.deps.Metrics != nil {
		s.router.GET(s.metricsPath(), gin.WrapH(s.deps.Metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", stateHandler.Status)

		v1.POST("/readings", detectionHandler.Ingest)
		v1.POST("/series/detect", detectionHandler.DetectSeries)
		v1.POST("/explain", detectionHandler.ExplainSingle)
		v1.POST("/explain/sequence", detectionHandler.ExplainSequence)
		v1.GET("/forecast", detectionHandler.Forecast)

		v1.POST("/feedback", feedbackHandler.Record)
		v1.GET("/threshold", stateHandler.Threshold)

		v1.GET("/baseline", stateHandler.Baseline)
		v1.POST("/baseline/save", stateHandler.SaveBaseline)
		v1.POST("/baseline/reset", stateHandler.ResetBaseline)

		v1.GET("/models", stateHandler.Models)
		v1.POST("/models/reload", stateHandler.ReloadModels)

		v1.GET("/alerts", alertHandler.List)
		v1.PATCH("/alerts/:id/status", alertHandler.UpdateStatus)
	}
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	logger.Infof("API server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsBridge != nil {
		s.wsBridge.Stop()
		s.deps.Bus.Unsubscribe(s.wsEvents)
	}
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
