package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/agentplatform/internal/api/http"
	"github.com/GriffinCanCode/agentplatform/internal/api/middleware"
	"github.com/GriffinCanCode/agentplatform/internal/api/ws"
	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/backend/docker"
	"github.com/GriffinCanCode/agentplatform/internal/backend/memory"
	"github.com/GriffinCanCode/agentplatform/internal/domain/audit"
	"github.com/GriffinCanCode/agentplatform/internal/domain/platform"
	"github.com/GriffinCanCode/agentplatform/internal/domain/schema"
	"github.com/GriffinCanCode/agentplatform/internal/domain/state"
	"github.com/GriffinCanCode/agentplatform/internal/domain/validation"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/config"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/logging"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/agentplatform/internal/remote"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// AdminRole grants access to user and schema management
const AdminRole = "admin"

// Server wraps the HTTP server and dependencies
type Server struct {
	config    *config.Config
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
	store     *state.Store
	persister *state.Persister
	backend   backend.Backend
	closer    func() error
	history   *audit.Log
	api       platform.API
	router    *gin.Engine
	http      *http.Server
}

// NewServer creates a new server instance. Platform state is recovered from
// the last snapshot before any route is mounted.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing agent platform",
		zap.String("platform_id", cfg.Platform.ID),
		zap.String("port", cfg.Server.Port),
		zap.String("container_environment", cfg.Platform.ContainerEnvironment),
		zap.String("session_policy", cfg.Persistence.SessionPolicy),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("agentplatform", logger.Logger)

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}

	// State first; nothing may touch it before recovery
	s.store = state.NewStore(state.PortRange{
		Start: cfg.Backend.PortRangeStart,
		End:   cfg.Backend.PortRangeEnd,
	}).WithLogger(logger.Logger)

	policy, err := state.ParsePolicy(cfg.Persistence.SessionPolicy)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	s.persister = state.NewPersister(s.store, cfg.Persistence.StateDir, policy, cfg.Persistence.SnapshotInterval).
		WithLogger(logger.Logger).
		WithMetrics(metrics)
	s.persister.Recover()

	schemas := schema.NewRegistry(logger.Logger)
	if dir := cfg.Backend.SchemaDir; dir != "" {
		n, err := schemas.LoadDir(dir)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("load schemas from %s: %w", dir, err)
		}
		logger.Info("Object schemas loaded", zap.String("dir", dir), zap.Int("count", n))
	}

	inner, closer, err := newBackend(cfg, logger.Logger)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	s.closer = closer
	s.backend = backend.NewGuard(inner, cfg.Backend.Timeout, logger.Logger).WithMetrics(metrics)

	service := platform.NewService(types.PlatformInfo{
		ID:                   cfg.Platform.ID,
		PublicURL:            cfg.Platform.PublicURL,
		ContainerEnvironment: cfg.Platform.ContainerEnvironment,
		PlatformEnvironment:  cfg.Platform.PlatformEnvironment,
		SessionPolicy:        cfg.Persistence.SessionPolicy,
		AuthEnabled:          cfg.Auth.Enabled,
	}, platform.Dependencies{
		Store:             s.store,
		Backend:           s.backend,
		Validator:         validation.New(schemas, logger.Logger),
		Remote:            remote.NewClient(remote.DefaultOptions(), logger.Logger),
		CapabilityTimeout: cfg.Backend.Timeout,
		Logger:            logger.Logger,
		Metrics:           metrics,
	})

	s.history = audit.NewLog().WithMetrics(metrics).WithLogger(logger.Logger)
	s.api = audit.Wrap(service, s.history)

	if cfg.Auth.AdminPassword != "" {
		err := s.api.AddUser(context.Background(), platform.UserRequest{
			Name:     cfg.Auth.AdminUser,
			Password: cfg.Auth.AdminPassword,
			Roles:    []string{AdminRole},
		})
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("create admin user: %w", err)
		}
	}

	s.router = s.newRouter(schemas)
	s.http = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func newLogger(cfg config.LogConfig) (*logging.Logger, error) {
	base := logging.DefaultConfig()
	if cfg.Development {
		base = logging.DevelopmentConfig()
	}
	if cfg.Level != "" {
		base.Level = cfg.Level
	}
	return logging.New(base)
}

// newBackend builds the orchestrator adapter for the configured environment
func newBackend(cfg *config.Config, logger *zap.Logger) (backend.Backend, func() error, error) {
	switch cfg.Platform.ContainerEnvironment {
	case config.EnvironmentMemory:
		return memory.New(), func() error { return nil }, nil
	case config.EnvironmentDocker:
		adapter, err := docker.New(cfg.Backend.DockerNetwork, cfg.Backend.DockerHost, logger)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.Timeout)
		defer cancel()
		if err := adapter.EnsureNetwork(ctx); err != nil {
			adapter.Close()
			return nil, nil, fmt.Errorf("docker network %s: %w", cfg.Backend.DockerNetwork, err)
		}
		return adapter, adapter.Close, nil
	default:
		return nil, nil, fmt.Errorf("container environment %q is not supported", cfg.Platform.ContainerEnvironment)
	}
}

func (s *Server) newRouter(schemas *schema.Registry) *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = s.config.RateLimit.RequestsPerSecond
		limits.Burst = s.config.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}
	if s.config.Auth.Enabled {
		router.Use(middleware.Auth(s.resolveToken, "/health", "/info", "/login", "/metrics"))
	}

	handlers := apihttp.NewHandlers(s.api, s.history, schemas, s.logger.Logger)
	handlers.Register(router)
	handlers.RegisterAdmin(router.Group("", middleware.RequireRole(AdminRole)))

	stream := ws.NewHandler(s.history, s.logger.Logger).WithMetrics(s.metrics)
	router.GET("/history/stream", stream.Stream)

	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	return router
}

// resolveToken goes through the audited API; token lookups are accessors and
// are never recorded
func (s *Server) resolveToken(ctx context.Context, token string) (string, []string, bool) {
	info, err := s.api.GetTokenOwner(ctx, token)
	if err != nil || info.Owner == "" {
		return "", nil, false
	}
	return info.Owner, info.Roles, true
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the audited platform API
func (s *Server) API() platform.API {
	return s.api
}

// Run starts the snapshot loop and serves HTTP until Shutdown
func (s *Server) Run() error {
	s.persister.Start(context.Background())

	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, writes a final snapshot and releases
// the backend
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.closeResources()

	_ = s.logger.Sync()
	return errors.Join(errs...)
}

func (s *Server) closeResources() {
	s.persister.Stop()
	if s.closer != nil {
		if err := s.closer(); err != nil {
			s.logger.Error("Failed to close backend", zap.Error(err))
		}
	}
	s.tracer.Close()
}
