package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chrissnell/pvestimate/internal/controllers/restserver"
	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/internal/pipeline"
	"github.com/chrissnell/pvestimate/pkg/config"
)

// App represents the main application
type App struct {
	configProvider *config.CachedProvider
	logger         *zap.SugaredLogger
	registry       *prometheus.Registry
	// gridPath is the turbidity grid opened at startup; it serves the process lifetime.
	gridPath string
}

// New creates a new application instance
func New(configProvider *config.CachedProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
		registry:       prometheus.NewRegistry(),
	}
}

// Run starts the estimate server and blocks until shutdown. SIGHUP reloads the
// configuration; a configuration that fails to validate is logged and ignored.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	settings, err := a.configProvider.GetSettings()
	if err != nil {
		return err
	}

	// Open the turbidity grid up front so a bad path fails at startup, not on the
	// first request.
	if _, err := pipeline.ConfigFrom(settings); err != nil {
		return fmt.Errorf("turbidity: %w", err)
	}
	if settings.Turbidity.Source == config.TurbidityGrid {
		a.gridPath = settings.Turbidity.GridPath
	}

	server, err := restserver.NewController(ctx, &wg, a.configProvider, settings.Server, a.registry, a.logger)
	if err != nil {
		return err
	}
	if err := server.StartController(); err != nil {
		return err
	}

	sites, _ := a.configProvider.GetSites()
	log.Infow("Application started successfully", "sites", len(sites))

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

wait:
	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				a.reload()
				continue
			}
			log.Info("shutdown signal received, initiating graceful shutdown...")
			break wait
		case <-ctx.Done():
			log.Info("context cancelled, shutting down...")
			break wait
		}
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

func (a *App) reload() {
	if err := a.configProvider.Reload(); err != nil {
		log.Errorf("configuration reload failed, keeping the previous configuration: %v", err)
		return
	}
	sites, _ := a.configProvider.GetSites()
	log.Infow("configuration reloaded", "sites", len(sites))

	settings, err := a.configProvider.GetSettings()
	if err != nil || a.gridPath == "" {
		return
	}
	if t := settings.Turbidity; t.Source == config.TurbidityGrid && t.GridPath != a.gridPath {
		log.Warnw("turbidity grid path changed; the grid opened at startup stays in use until restart",
			"configured", t.GridPath, "in_use", a.gridPath)
	}
}
