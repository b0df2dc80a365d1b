package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/lead-metric/internal/config"
	httpcontroller "github.com/vadim/lead-metric/internal/controller/http"
	"github.com/vadim/lead-metric/internal/database"
	"github.com/vadim/lead-metric/internal/domain/inbox/dao"
	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
	"github.com/vadim/lead-metric/internal/domain/inbox/policy"
	"github.com/vadim/lead-metric/internal/domain/inbox/scheduler"
	"github.com/vadim/lead-metric/internal/domain/inbox/service"
	"github.com/vadim/lead-metric/internal/domain/inbox/trend"
	"github.com/vadim/lead-metric/internal/httpx/upstream/crm"
	"github.com/vadim/lead-metric/internal/storage"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	pool    *pgxpool.Pool
	reports *storage.ReportStorage

	inboxService *service.Service
	inboxPolicy  *policy.Policy

	// Scheduler for periodic conversation sync
	scheduler *scheduler.Scheduler
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Initialize router with middleware
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(30 * time.Second))

	app := &App{
		cfg:    cfg,
		router: r,
		logger: logger,
	}

	// Initialize infrastructure
	if err := app.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("initializing infrastructure: %w", err)
	}

	// Initialize domain layers
	app.initDomains()

	// Register routes
	app.registerRoutes()

	// Initialize HTTP server
	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Initialize scheduler
	if cfg.Scheduler.Enabled {
		accounts := newStaticAccountProvider(cfg.CRM)
		app.scheduler = scheduler.New(app.inboxService, accounts, cfg.Scheduler.Interval, logger)
	}

	return app, nil
}

// initInfrastructure initializes infrastructure components (DB, S3)
func (a *App) initInfrastructure(ctx context.Context) error {
	if dsn := a.cfg.Database.PostgresDSN; dsn != "" {
		pool, err := database.NewPostgresPool(ctx, dsn, a.cfg.Database.MaxConns, a.cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		a.pool = pool
	} else {
		a.logger.Warn("DATABASE_URL not set, running without local storage")
	}

	if a.cfg.S3.Enabled {
		reports, err := storage.NewReportStorage(storage.S3Config{
			Endpoint:        a.cfg.S3.Endpoint,
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
			Bucket:          a.cfg.S3.Bucket,
			Region:          a.cfg.S3.Region,
			PublicURL:       a.cfg.S3.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("initializing report storage: %w", err)
		}
		a.reports = reports
	}

	return nil
}

// initDomains initializes domain layers (DAO, Service, Policy)
func (a *App) initDomains() {
	// Initialize CRM client
	crmClient := crm.New(
		crm.WithBaseURL(a.cfg.CRM.BaseURL),
		crm.WithAPIVersion(a.cfg.CRM.APIVersion),
	)

	// Initialize trend engine
	opts := []trend.Option{
		trend.WithSignificanceThreshold(a.cfg.Trends.SignificanceThreshold),
	}
	if a.cfg.Trends.PreviousWindowInclusive {
		opts = append(opts, trend.WithInclusivePreviousEnd())
	}
	engine := trend.New(opts...)

	// Initialize service, with or without local storage
	if a.pool != nil {
		var reports service.ReportStore
		if a.reports != nil {
			reports = a.reports
		}
		a.inboxService = service.NewWithRepo(
			crmClient,
			engine,
			dao.NewThreadPostgres(a.pool),
			dao.NewMessagePostgres(a.pool),
			reports,
		)
	} else {
		a.inboxService = service.New(crmClient, engine)
	}

	// Initialize policy
	accounts := newStaticAccountProvider(a.cfg.CRM)
	a.inboxPolicy = policy.New(a.inboxService, accounts)
}

// registerRoutes registers all HTTP routes
func (a *App) registerRoutes() {
	// Health check
	a.router.Get("/healthz", a.healthHandler)
	a.router.Get("/readyz", a.readyHandler)

	// API v1
	a.router.Route("/api/v1", func(r chi.Router) {
		inboxHandler := httpcontroller.NewInboxHandler(a.inboxPolicy)
		inboxHandler.RegisterRoutes(r)
	})
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readyHandler handles readiness check requests
func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	if a.pool != nil {
		if err := a.pool.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"database unavailable"}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	// Start scheduler if enabled
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	// Channel to receive errors from server
	errCh := make(chan error, 1)

	// Start HTTP server in goroutine
	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	// Graceful shutdown
	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	// Stop scheduler
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("shutdown complete")
	return nil
}

// staticAccountProvider resolves accounts from configuration: one service
// token shared across the configured account list. Empty list allows any
// account.
type staticAccountProvider struct {
	token    string
	accounts map[string]struct{}
	ids      []string
}

func newStaticAccountProvider(cfg config.CRM) *staticAccountProvider {
	accounts := make(map[string]struct{}, len(cfg.AccountIDs))
	for _, id := range cfg.AccountIDs {
		accounts[id] = struct{}{}
	}
	return &staticAccountProvider{
		token:    cfg.APIToken,
		accounts: accounts,
		ids:      cfg.AccountIDs,
	}
}

func (p *staticAccountProvider) GetAPIToken(ctx context.Context, accountID string) (string, error) {
	if len(p.accounts) > 0 {
		if _, ok := p.accounts[accountID]; !ok {
			return "", entity.ErrUnknownAccount
		}
	}
	return p.token, nil
}

func (p *staticAccountProvider) ListAccountIDs(ctx context.Context) ([]string, error) {
	return p.ids, nil
}
