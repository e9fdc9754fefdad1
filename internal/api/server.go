package api

import (
	"net/http"

	"go.uber.org/zap"

	"refillplan/internal/auth"
	"refillplan/internal/config"
	"refillplan/internal/mapdata"
	"refillplan/internal/runner"
	"refillplan/internal/store"
	"refillplan/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Runner *runner.Runner
	Config config.Config
	Logger *zap.Logger
}

// NewServer wires the service from cfg. Without a database URL runs are kept
// in memory; without a Redis URL events stay in process.
func NewServer(cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var s store.Store
	if cfg.Database.URL == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := sp.MigrateDir(cfg.Database.MigrationsDir); err != nil {
				log.Warn("migrations failed", zap.Error(err))
			}
		}
		s = sp
	}

	var broker EventBroker = NewBroker()
	if cfg.Redis.URL != "" {
		if rb, err := NewRedisBroker(cfg.Redis.URL); err == nil {
			broker = rb
		} else {
			log.Warn("redis broker unavailable, using in-process broker", zap.Error(err))
		}
	}

	src, sub, err := mapdata.FromConfig(cfg.Game, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	pub := webhooks.NewPublisher(s, cfg.Webhook.URL, cfg.Webhook.Secret)
	return &Server{
		Store:  s,
		Pub:    pub,
		Auth:   auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret),
		Broker: broker,
		Runner: &runner.Runner{
			Source:    src,
			Submitter: sub,
			Store:     s,
			Publisher: pub,
			Events:    broker,
			Defaults:  cfg.Optimizer,
			Logger:    log.Named("runner"),
		},
		Config: cfg,
		Logger: log,
	}, nil
}

// Routes returns the service mux wrapped in the logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Optimization
	mux.HandleFunc("/v1/optimize", s.OptimizeHandler)
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)

	// Runs
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /events/ws

	// Admin
	mux.HandleFunc("/v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)
	mux.HandleFunc("/v1/admin/run-metrics", s.RunMetricsHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)

	// Health and debug
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug/vars", s.DebugJSON)
	mux.Handle("/metrics", metricsHandler())

	return s.corsMiddleware(s.metricsMiddleware(s.logMiddleware(mux)))
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.Webhook.MaxAttempts, s.Logger.Named("webhooks"))
}

// Close releases the store connection, if any.
func (s *Server) Close() error {
	type closer interface{ Close() error }
	if c, ok := s.Store.(closer); ok {
		return c.Close()
	}
	return nil
}
