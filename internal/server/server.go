// Package server assembles the newsroom edge service and runs it until
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/activity"
	"github.com/JakeFAU/newsroom-edge/internal/api"
	"github.com/JakeFAU/newsroom-edge/internal/app"
	"github.com/JakeFAU/newsroom-edge/internal/articles"
	"github.com/JakeFAU/newsroom-edge/internal/cache"
	"github.com/JakeFAU/newsroom-edge/internal/clock/system"
	"github.com/JakeFAU/newsroom-edge/internal/config"
	"github.com/JakeFAU/newsroom-edge/internal/dispatcher"
	"github.com/JakeFAU/newsroom-edge/internal/footer"
	"github.com/JakeFAU/newsroom-edge/internal/geocode"
	"github.com/JakeFAU/newsroom-edge/internal/hash/sha256"
	"github.com/JakeFAU/newsroom-edge/internal/id/uuid"
	"github.com/JakeFAU/newsroom-edge/internal/metrics"
	"github.com/JakeFAU/newsroom-edge/internal/prefetch"
	queueMemory "github.com/JakeFAU/newsroom-edge/internal/queue/memory"
	"github.com/JakeFAU/newsroom-edge/internal/site"
	"github.com/JakeFAU/newsroom-edge/internal/telemetry"
	"github.com/JakeFAU/newsroom-edge/internal/worker"
)

// App contains the running service's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	providers *app.App
	apiServer *api.Server
	dispatch  *dispatcher.Dispatcher
	queue     *queueMemory.Queue
	hub       *activity.Hub
	articles  *articles.Service
	tracer    *sdktrace.TracerProvider
}

// Build creates the application's dependencies. connector may be nil to dial
// the real services.
func Build(ctx context.Context, cfg config.Config, connector app.Connector, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
	)

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		a.tracer = tp
	}

	providers, err := app.NewApp(ctx, cfg, connector, logger)
	if err != nil {
		a.closeObservability(ctx)
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	a.providers = providers

	clock := system.New()
	a.hub = setupActivity(a)

	a.articles = articles.New(
		providers.Store,
		cache.New[site.Article]("articles", cfg.Prefetch.CacheTTL, clock),
		cfg.Prefetch.Depth,
		logger,
	)

	var footerCache *cache.Cache[site.Footer]
	if cfg.Footer.CacheTTL > 0 {
		footerCache = cache.New[site.Footer]("footer", cfg.Footer.CacheTTL, clock)
	}
	agg := footer.New(providers.Store, footerCache, footer.Config{
		CategoryLimit: cfg.Footer.CategoryLimit,
		RecentLimit:   cfg.Footer.RecentLimit,
	}, logger)

	geocoder, err := geocode.New(geocode.Config{
		BaseURL:   cfg.Geocode.BaseURL,
		APIKey:    cfg.Geocode.APIKey,
		UserAgent: cfg.Geocode.UserAgent,
		Timeout:   cfg.Geocode.Timeout,
		RPS:       cfg.Geocode.RPS,
		Burst:     cfg.Geocode.Burst,
	}, nil)
	if err != nil {
		a.closeInfrastructure(ctx)
		a.closeObservability(ctx)
		return nil, fmt.Errorf("geocoder init failed: %w", err)
	}

	a.queue = queueMemory.NewQueue(cfg.Prefetch.QueueDepth)
	coordinator := prefetch.New(a.queue, uuid.New(), clock, a.hub, logger)
	a.dispatch = dispatcher.NewPool(cfg.Prefetch.Workers, func(i int) *worker.Worker {
		return worker.New(
			a.queue,
			a.articles,
			clock,
			a.hub,
			worker.Config{WarmTimeout: cfg.Prefetch.WarmTimeout},
			logger.Named("worker").With(zap.Int("index", i)),
		)
	})
	logger.Info("prefetch pool configured",
		zap.Int("workers", a.dispatch.Size()),
		zap.Int("queue_depth", cfg.Prefetch.QueueDepth),
		zap.Duration("cache_ttl", cfg.Prefetch.CacheTTL),
	)

	deps := api.Deps{
		Videos:   providers.Store,
		Articles: a.articles,
		Footer:   agg,
		Prefetch: coordinator,
		Geocoder: geocoder,
		Ready:    providers.Store,
		Clock:    clock,
		Hasher:   sha256.New(),
	}
	if a.hub != nil {
		deps.Events = a.hub
	}
	if a.tracer != nil {
		deps.Tracer = a.tracer
	}
	a.apiServer = api.NewServer(deps, cfg, logger)

	metrics.Init()
	return a, nil
}

func setupActivity(a *App) *activity.Hub {
	if !a.cfg.Activity.Enabled {
		a.logger.Info("activity tracking disabled")
		return nil
	}
	var sinks []activity.Sink
	if a.providers.Publisher != nil {
		sinks = append(sinks, activity.NewPublisherSink(a.providers.Publisher, a.cfg.PubSub.TopicName))
		a.logger.Debug("added activity publisher sink", zap.String("topic", a.cfg.PubSub.TopicName))
	}
	if a.cfg.Activity.LogEvents {
		sinks = append(sinks, activity.NewLogSink(a.logger.Named("activity_log")))
		a.logger.Debug("added activity log sink")
	}
	if len(sinks) == 0 {
		a.logger.Warn("activity tracking enabled but no sinks configured")
		return nil
	}
	hubCfg := activity.Config{
		BufferSize:  a.cfg.Activity.BufferSize,
		MaxBatch:    a.cfg.Activity.MaxBatch,
		MaxWait:     a.cfg.Activity.MaxWait,
		SinkTimeout: a.cfg.Activity.SinkTimeout,
		Logger:      a.logger.Named("activity_hub"),
	}
	hub := activity.NewHub(hubCfg, sinks...)
	a.logger.Info("activity hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch", hubCfg.MaxBatch),
		zap.Duration("max_wait", hubCfg.MaxWait),
		zap.Int("sinks", len(sinks)),
	)
	return hub
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP on the configured port and blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, lis)
}

// Serve runs the workers and the HTTP server on lis until ctx is canceled,
// then shuts everything down.
func (a *App) Serve(ctx context.Context, lis net.Listener) error {
	a.logger.Info("application started")
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.dispatch.Size()))
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.queue.Close()
	<-dispatchDone

	if err := a.Close(shutdownCtx); err != nil {
		return err
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("activity hub close failed", zap.Error(err))
		}
	}
	if a.providers != nil {
		a.providers.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}
