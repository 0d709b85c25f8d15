package restserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/pkg/config"
)

// Provider is the view of the configuration the server needs. *config.CachedProvider
// satisfies it.
type Provider interface {
	GetSites() ([]config.SiteData, error)
	GetSettings() (*config.SettingsData, error)
	Site(name string) (config.SiteData, error)
}

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	provider     Provider
	serverConfig config.ServerData
	Server       http.Server
	logger       *zap.SugaredLogger
	handlers     *Handlers
	metrics      *Metrics
}

// NewController creates a new REST server controller. Metrics are registered on reg;
// pass nil for a private registry.
func NewController(ctx context.Context, wg *sync.WaitGroup, provider Provider, sc config.ServerData, reg *prometheus.Registry, logger *zap.SugaredLogger) (*Controller, error) {
	if provider == nil {
		return nil, errors.New("REST server needs a configuration provider")
	}
	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		provider:     provider,
		serverConfig: sc,
		logger:       logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if sc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		sc.Port = 8080
	}
	ctrl.serverConfig = sc

	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	ctrl.metrics = NewMetrics(reg)
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.serverConfig.Cert != "" && c.serverConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.serverConfig.Cert, c.serverConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the router wrapped in the request ID, access log, recovery, CORS and
// compression middleware.
func (c *Controller) Handler() http.Handler {
	var h http.Handler = c.setupRouter()
	h = handlers.CompressHandler(h)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader, runIDHeader}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{c.logger}),
		handlers.PrintRecoveryStack(true),
	)(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, c.logRequest)
	return withRequestID(h)
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", c.metrics.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/sites", c.handlers.GetSites).Methods(http.MethodGet)
	router.HandleFunc("/solarposition", c.handlers.GetSolarPosition).Methods(http.MethodGet)
	router.HandleFunc("/clearsky/{model}", c.handlers.GetClearSky).Methods(http.MethodGet)
	router.HandleFunc("/estimate/{site}", c.handlers.PostEstimate).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(c.handlers.notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(c.handlers.methodNotAllowed)

	return router
}
