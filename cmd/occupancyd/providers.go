package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"occupancy-status-backend/config"
	"occupancy-status-backend/internal/api"
	"occupancy-status-backend/internal/logging"
	"occupancy-status-backend/internal/notification"
	"occupancy-status-backend/internal/occupancy"
	"occupancy-status-backend/internal/store"
)

// shutdownTimeout bounds http.Server.Shutdown and the fx stop hooks.
type shutdownTimeout time.Duration

// pushDeps groups the optional web push dependencies. Both fields are nil
// when VAPID keys are not configured.
type pushDeps struct {
	options *webpush.Options
	store   store.Store
}

func appOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			newConfig,
			newLogger,
			newClock,
			newTracker,
			newPush,
			newHandler,
			newRouter,
			newHTTPServer,
			newShutdownTimeout,
		),
		fx.Invoke(startNotifications),
		fx.Invoke(func(*http.Server) {}),
	)
}

func newConfig() (*config.Config, error) {
	load := config.Load
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		load, configPath = config.LoadOptional, config.DefaultPath
	}
	cfg, err := load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
}

func newClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func newShutdownTimeout(cfg *config.Config) shutdownTimeout {
	return shutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)
}

func newTracker(cfg *config.Config, clock clockwork.Clock, logger *zap.Logger) *occupancy.Tracker {
	logger.Info("occupancy tracker ready", zap.Duration("timeout", cfg.Occupancy.Timeout))
	return occupancy.NewTracker(cfg.Occupancy.Timeout, clock)
}

func newPush(cfg *config.Config, logger *zap.Logger) *pushDeps {
	if !cfg.Push.Enabled() {
		logger.Warn("VAPID keys not configured, push notifications disabled")
		return &pushDeps{}
	}
	return &pushDeps{
		options: &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		},
		store: store.NewCacheStore(cfg.Push.SubscriptionTTL),
	}
}

func newHandler(tracker *occupancy.Tracker, push *pushDeps) *api.Handler {
	return api.NewHandler(tracker, push.store, push.options)
}

func newRouter(handler *api.Handler, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return api.NewRouter(handler, cfg.Server, logger)
}

func newHTTPServer(lc fx.Lifecycle, cfg *config.Config, router *gin.Engine, logger *zap.Logger) *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
			}
			logger.Info("HTTP server starting", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down HTTP server")
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("http server shutdown: %w", err)
			}
			logger.Info("server gracefully stopped")
			return nil
		},
	})
	return server
}

// startNotifications runs the availability watcher and the push worker pool
// for the lifetime of the app. It does nothing when push is disabled.
func startNotifications(
	lc fx.Lifecycle,
	cfg *config.Config,
	push *pushDeps,
	tracker *occupancy.Tracker,
	clock clockwork.Clock,
	logger *zap.Logger,
) {
	if push.store == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, push.store, push.options, logger.Named("push"))
	watcher := notification.NewWatcher(tracker, pool, cfg.Push.WatchInterval, clock, logger.Named("watcher"))

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting notification workers",
				zap.Int("workers", cfg.WorkerPool.Size),
				zap.Duration("watch_interval", cfg.Push.WatchInterval))
			pool.Start(ctx)
			go watcher.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
