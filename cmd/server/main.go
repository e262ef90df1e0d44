// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "bt-discovery/docs"
	"bt-discovery/internal/classify"
	"bt-discovery/internal/config"
	"bt-discovery/internal/database"
	"bt-discovery/internal/events"
	"bt-discovery/internal/mdns"
	"bt-discovery/internal/middleware"
	"bt-discovery/internal/repository"
	"bt-discovery/internal/routes"
	"bt-discovery/internal/service"
	"bt-discovery/internal/utils"
	"bt-discovery/internal/version"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	scanners         *service.Scanners
	scanRepo         repository.ScanRepository
	eventBus         *events.EventBus
	rateLimiter      *middleware.RateLimiter
	discoveryService *service.DiscoveryService
	router           *routes.Router

	// cancels background services
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// @title Bluetooth Discovery Service API
// @version 1.0.0
// @description Discovers nearby Bluetooth, serial and USB devices and reports them as device info records

// @contact.name Bluetooth Discovery Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8086
// @BasePath /api/v1
func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	app, err := NewApplication(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configFile string) (*Application, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "bt-discovery")
	serviceLogger.LogServiceStart(version.Full(),
		zap.String("bluetooth_backend", cfg.Bluetooth.Backend),
		zap.String("database_driver", cfg.Database.Driver),
	)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeDatabase opens the scan history database and runs migrations.
// Driver "none" leaves app.database nil.
func (app *Application) initializeDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, app.config, app.logger)
	if errors.Is(err, database.ErrDisabled) {
		app.logger.Info("Database disabled, scan history is kept in memory")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	if app.config.Database.AutoMigrate {
		migrator := database.NewMigrator(db, app.logger)
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.logger.Info("Database initialized successfully", zap.String("driver", db.Driver))
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() {
	if app.database != nil {
		app.scanRepo = repository.NewScanRepository(app.database, app.logger)
	} else {
		app.scanRepo = repository.NewMemoryScanRepository(app.logger)
	}

	app.logger.Info("Repositories initialized successfully")
}

// initializeServices creates service instances
func (app *Application) initializeServices() error {
	classifier, err := classify.FromConfig(app.config.Discovery)
	if err != nil {
		return fmt.Errorf("invalid classification rules: %w", err)
	}

	scanners, err := service.BuildScanners(app.config, classifier, app.logger)
	if err != nil {
		return err
	}
	app.scanners = scanners

	app.eventBus = events.NewEventBus(app.logger)
	app.discoveryService = service.NewDiscoveryService(
		scanners,
		app.scanRepo,
		app.eventBus,
		app.config,
		app.logger,
	)

	app.logger.Info("Services initialized successfully",
		zap.Int("classification_rules", classifier.Len()),
		zap.Bool("can_connect", app.discoveryService.CanConnect()),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	if app.config.Security.RateLimitEnabled {
		app.rateLimiter = middleware.NewRateLimiter(
			app.config.Security.RateLimitRequests,
			app.config.Security.RateLimitWindow,
		)
	}

	app.router = routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.discoveryService,
		app.eventBus,
		app.rateLimiter,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices(ctx context.Context) {
	app.goBackground(app.eventBus.Start)
	app.goBackground(app.router.WebSocketHandler().Run)

	if app.rateLimiter != nil {
		app.goBackground(func() { app.rateLimiter.Cleanup(ctx) })
	}

	if app.config.History.CleanupInterval > 0 && app.config.History.Retention > 0 {
		app.goBackground(func() { app.startCleanupService(ctx) })
	}

	if app.config.MDNS.Enabled {
		advertiser := mdns.NewAdvertiser(&app.config.MDNS, app.logger)
		app.goBackground(func() {
			err := advertiser.Advertise(ctx, app.config.Server.Port, map[string]string{
				"version": version.Version,
				"backend": app.scanners.Backend,
				"path":    "/api/v1",
			})
			if err != nil {
				app.logger.Warn("mDNS advertisement failed", zap.Error(err))
			}
		})
	}

	app.logger.Info("Background services started")
}

func (app *Application) goBackground(fn func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		fn()
	}()
}

// startCleanupService removes scans older than the retention period
func (app *Application) startCleanupService(ctx context.Context) {
	ticker := time.NewTicker(app.config.History.CleanupInterval)
	defer ticker.Stop()

	app.logger.Info("History cleanup started",
		zap.Duration("interval", app.config.History.CleanupInterval),
		zap.Duration("retention", app.config.History.Retention),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, time.Minute)
			deleted, err := app.discoveryService.CleanupHistory(cleanupCtx)
			cancel()

			if err != nil {
				app.logger.Error("Failed to cleanup scan history", zap.Error(err))
			} else if deleted > 0 {
				app.logger.Info("Cleaned up scan history", zap.Int64("deleted", deleted))
			}
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "bt-discovery")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// let a background scan finish recording before the database closes
	app.discoveryService.Wait()

	app.cancel()
	app.eventBus.Stop()
	app.wg.Wait()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Fprintf(os.Stderr, "Logger close error: %v\n", err)
	}
}

// Start runs the HTTP server until a shutdown signal arrives
func (app *Application) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices(ctx)

	app.waitForShutdown()

	return nil
}
