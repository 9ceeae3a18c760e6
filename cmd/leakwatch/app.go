package main

import (
	"context"
	"fmt"
	"time"

	"github.com/OldStager01/leakwatch/api"
	"github.com/OldStager01/leakwatch/api/handlers"
	"github.com/OldStager01/leakwatch/internal/alerting"
	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/internal/engine"
	"github.com/OldStager01/leakwatch/internal/events"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/internal/metrics"
	"github.com/OldStager01/leakwatch/internal/model"
	"github.com/OldStager01/leakwatch/internal/monitor"
	"github.com/OldStager01/leakwatch/internal/resilience"
	"github.com/OldStager01/leakwatch/internal/simulator"
	"github.com/OldStager01/leakwatch/internal/source"
	"github.com/OldStager01/leakwatch/pkg/config"
	"github.com/OldStager01/leakwatch/pkg/database"
	"github.com/OldStager01/leakwatch/pkg/database/queries"
)

const startupTimeout = 30 * time.Second

// alertStore is both the event logger sink and the API's alert history.
type alertStore interface {
	events.AlertStore
	handlers.AlertStore
}

// app holds every long-lived component of a serving process.
type app struct {
	cfg *config.Config

	db       *database.DB
	bus      *events.EventBus
	metrics  *metrics.Metrics
	registry *model.Registry
	watcher  *model.Watcher
	engine   *engine.Engine
	source   source.Source

	profiles baseline.Store
	alerts   alertStore
	feedback *queries.FeedbackRepository

	eventLog *events.EventLogger
	monitor  *monitor.Monitor
	server   *api.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	a := &app{
		cfg:     cfg,
		bus:     events.NewEventBus(cfg.Events.BufferSize),
		metrics: metrics.New(),
	}
	id := cfg.App.InstallationID
	publisher := events.NewPublisher(a.bus, id)

	if err := a.openStores(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.registry = model.NewRegistry(
		model.WithBreakers(model.BreakerConfig{
			MaxFailures: cfg.Models.CircuitBreaker.MaxFailures,
			Timeout:     cfg.Models.CircuitBreaker.Timeout,
			HalfOpenMax: cfg.Models.CircuitBreaker.HalfOpenMax,
		}, a.breakerChanged),
		model.WithWindow(cfg.Engine.SequenceLength),
	)
	a.loadModels(publisher)

	a.engine = engine.New(engine.Config{
		InstallationID:      id,
		SequenceLength:      cfg.Engine.SequenceLength,
		HistoryLength:       cfg.Engine.HistoryLength,
		InitialThreshold:    cfg.Engine.InitialThreshold,
		CriticalProbability: cfg.Engine.CriticalProbability,
		ForecastHorizon:     cfg.Engine.ForecastHorizonHours,
		MaxFeedback:         cfg.Engine.MaxFeedback,
		Baseline: baseline.Config{
			MinSamples:       cfg.Baseline.MinSamples,
			MaxSamples:       cfg.Baseline.MaxSamples,
			HourlyMinSamples: cfg.Baseline.HourlyMinSamples,
			AnomalyThreshold: cfg.Baseline.AnomalyThreshold,
			Location:         cfg.App.Location(),
		},
	}, a.registry,
		engine.WithPublisher(publisher),
		engine.WithMetrics(a.metrics),
	)
	a.restoreState(ctx)

	src, err := a.openSource(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.source = src

	var sender alerting.Sender = alerting.Noop{}
	if cfg.Alerts.Enabled {
		sender = alerting.NewClient(alerting.ClientConfig{
			Endpoint: cfg.Alerts.Endpoint,
			Timeout:  cfg.Alerts.Timeout,
		})
	}

	a.monitor = monitor.New(monitor.Config{
		Interval:        cfg.Source.Interval,
		SaveInterval:    cfg.Baseline.SaveInterval,
		ForecastHours:   cfg.Engine.ForecastHorizonHours,
		DeliveryTimeout: cfg.Alerts.Timeout,
		Engine:          a.engine,
		Source:          a.source,
		Sender:          sender,
		ProfileStore:    a.profiles,
		Publisher:       publisher,
		Metrics:         a.metrics,
	})

	a.eventLog = events.NewEventLogger(a.alerts, a.bus.SubscribeAll())

	checks := map[string]handlers.HealthChecker{"source": a.source}
	if a.db != nil {
		checks["database"] = a.db
	}
	deps := api.Dependencies{
		Engine:   a.engine,
		Bus:      a.bus,
		Alerts:   a.alerts,
		Profiles: a.profiles,
		Metrics:  a.metrics,
		Checks:   checks,
	}
	if a.feedback != nil {
		deps.Feedback = a.feedback
	}
	if cfg.Models.BundlePath != "" {
		deps.ModelPath = cfg.Models.BundlePath
		deps.OnModelReload = a.modelReloaded(publisher)
	}
	a.server = api.NewServer(cfg, deps)

	if cfg.Models.Watch && cfg.Models.BundlePath != "" {
		a.watcher = model.NewWatcher(cfg.Models.BundlePath, a.registry, a.modelReloaded(publisher))
	}
	return a, nil
}

// openStores connects the database when one is configured. Without it
// profiles go to files and alerts stay in memory.
func (a *app) openStores(ctx context.Context) error {
	if !a.cfg.Database.Enabled() {
		logger.Warn("No database configured, alerts and feedback will not survive restarts")
		a.profiles = baseline.NewFileStore(a.cfg.Baseline.ProfilePath)
		a.alerts = alerting.NewMemoryStore(0)
		return nil
	}

	db, err := database.New(a.cfg.Database.ToDBConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	logger.Infof("Database connection established (%s)", db.Driver())

	if err := migrate(ctx, db); err != nil {
		return err
	}

	a.profiles = queries.NewProfileRepository(db)
	a.alerts = queries.NewAlertRepository(db)
	a.feedback = queries.NewFeedbackRepository(db)
	return nil
}

func (a *app) loadModels(publisher *events.Publisher) {
	path := a.cfg.Models.BundlePath
	if path == "" {
		logger.Warn("No model bundle configured, scoring falls back to rules")
		return
	}
	version, err := a.registry.LoadFile(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Model bundle not loaded, scoring falls back to rules")
	} else {
		logger.WithField("version", version).Info("Model bundle loaded")
	}
	a.modelReloaded(publisher)(version, err)
}

func (a *app) modelReloaded(publisher *events.Publisher) func(string, error) {
	return func(version string, err error) {
		a.metrics.IncModelReload(err)
		publisher.ModelReloaded(version, err)
	}
}

func (a *app) breakerChanged(name string, _, to resilience.State) {
	a.metrics.SetCircuitBreakerState(name, to)
}

// restoreState reloads the persisted baseline profile and feedback. Neither
// failure is fatal: the engine calibrates from scratch.
func (a *app) restoreState(ctx context.Context) {
	log := logger.WithInstallation(a.cfg.App.InstallationID)

	if err := a.engine.LoadBaseline(ctx, a.profiles); err != nil {
		log.WithError(err).Warn("Baseline profile not restored, calibrating")
	} else if a.engine.Baseline().IsCalibrated() {
		log.Info("Baseline profile restored")
	}

	if a.feedback == nil {
		return
	}
	records, err := a.feedback.Recent(ctx, a.cfg.App.InstallationID, a.cfg.Engine.MaxFeedback)
	if err != nil {
		log.WithError(err).Warn("Feedback history not restored")
		return
	}
	a.engine.RestoreFeedback(records)
	log.Infof("Restored %d feedback records", len(records))
}

func (a *app) openSource(ctx context.Context) (source.Source, error) {
	cfg := a.cfg.Source
	id := a.cfg.App.InstallationID

	var base source.Source
	switch cfg.Type {
	case "mqtt":
		s := source.NewMQTTSource(source.MQTTSourceConfig{
			Broker:         cfg.MQTT.Broker,
			Topic:          cfg.MQTT.Topic,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			QoS:            byte(cfg.MQTT.QoS),
			KeepAlive:      uint16(cfg.MQTT.KeepAlive),
			BufferSize:     a.cfg.Engine.SequenceLength,
			ConnectTimeout: cfg.Timeout,
			InstallationID: id,
		})
		if err := s.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		base = s
	case "mock":
		base = source.NewMockSource(source.MockSourceConfig{
			Device: simulator.DeviceConfig{
				Seed:     cfg.Mock.Seed,
				Location: a.cfg.App.Location(),
			},
			Pattern: cfg.Mock.Pattern,
		})
	default:
		base = source.NewHTTPSource(source.HTTPSourceConfig{
			Endpoint:       cfg.Endpoint,
			InstallationID: id,
			Timeout:        cfg.Timeout,
		})
	}
	logger.WithInstallation(id).Infof("Reading source: %s", cfg.Type)

	return source.NewResilientSource(source.ResilientSourceConfig{
		Source:         base,
		InstallationID: id,
		MaxFailures:    cfg.CircuitBreaker.MaxFailures,
		Timeout:        cfg.CircuitBreaker.Timeout,
		HalfOpenMax:    cfg.CircuitBreaker.HalfOpenMax,
		RetryAttempts:  cfg.RetryAttempts,
		RetryDelay:     cfg.RetryDelay,
		OnStateChange:  a.breakerChanged,
	}), nil
}

// close releases what newApp opened, in reverse order.
func (a *app) close() {
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close reading source")
		}
	}
	a.bus.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}
}
