package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core/archive"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/cache"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/passes"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/resilience"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/store"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/throttle"
	errwrap "github.com/merdocx/easy-pass-bot-sub000/internal/errors"
	"github.com/merdocx/easy-pass-bot-sub000/internal/metrics"
	"github.com/merdocx/easy-pass-bot-sub000/internal/notify"
	"github.com/merdocx/easy-pass-bot-sub000/internal/observability"
	"github.com/merdocx/easy-pass-bot-sub000/internal/server"
	"github.com/merdocx/easy-pass-bot-sub000/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// storeHealthChecker pings the database connection
type storeHealthChecker struct {
	db *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.db == nil || s.db.DB == nil {
		return errwrap.NewInternalError("store not initialized")
	}
	return s.db.DB.PingContext(ctx)
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ops HTTP server and background workers",
	Long: `Start the ops HTTP server, the cache sweep task, and the pass
archivist with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit

Shutdown stops the HTTP server, waits for the background loops to
exit, and flushes logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := appConfig.Logging.Level
		observability.InitServerLogger(serviceName, logLevel)
		logger := observability.ServerLogger

		// Flag values win over the config file; both feed through viper.
		host := viper.GetString("server.host")
		port := viper.GetInt("server.port")

		if appConfig.Metrics.Enabled {
			metricsPort := appConfig.Metrics.Port
			if metricsPort == 0 {
				metricsPort = 9090
			}
			if err := observability.InitMetrics(serviceName, metricsPort); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		logger.Info("Initializing server",
			zap.String("service", serviceName),
			zap.String("version", versionInfo.Version),
			zap.String("host", host),
			zap.Int("port", port))

		db, err := openStore(cmd.Context())
		if err != nil {
			logger.Error("Failed to open store", zap.Error(err))
			return errwrap.WrapDatabaseError(cmd.Context(), err, "store initialization failed")
		}

		// Core services
		passCache := cache.New(cache.Config{
			DefaultTTL:    appConfig.Cache.DefaultTTL,
			SweepInterval: appConfig.Cache.SweepInterval,
		}, logger)
		limiter := throttle.New(throttle.Config{
			MaxRequests: appConfig.Throttle.MaxRequests,
			Window:      appConfig.Throttle.Window,
		}, logger)
		breakers := resilience.NewManager(logger)
		archivist := archive.New(db, archive.Config{
			Interval: appConfig.Archive.Interval,
			Cooldown: appConfig.Archive.Cooldown,
		}, logger)

		var notifier notify.Notifier
		if appConfig.Notify.WebhookURL != "" {
			webhook, err := notify.NewWebhookNotifier(appConfig.Notify)
			if err != nil {
				logger.Error("Failed to configure webhook notifier", zap.Error(err))
				return errwrap.WrapInvalidInput(cmd.Context(), err, "notify configuration invalid")
			}
			notifier = webhook
		}

		retryStrategy, err := resilience.ParseStrategy(appConfig.Retry.Strategy)
		if err != nil {
			logger.Error("Invalid retry strategy", zap.Error(err))
			return errwrap.WrapInvalidInput(cmd.Context(), err, "retry configuration invalid")
		}

		passService := &passes.Service{
			Repo:     db,
			Cache:    passCache,
			Throttle: limiter,
			Breakers: breakers,
			Executor: resilience.NewExecutor(logger),
			Notifier: notifier,
			RetryPolicy: resilience.Policy{
				MaxAttempts: appConfig.Retry.MaxAttempts,
				BaseDelay:   appConfig.Retry.BaseDelay,
				MaxDelay:    appConfig.Retry.MaxDelay,
				Strategy:    retryStrategy,
			},
			BreakerCfg: resilience.BreakerConfig{
				FailureThreshold: appConfig.Breaker.FailureThreshold,
				SuccessThreshold: appConfig.Breaker.SuccessThreshold,
				OpenTimeout:      appConfig.Breaker.OpenTimeout,
			},
			MaxActivePerUser: appConfig.Passes.MaxActivePerUser,
			Logger:           logger,
		}

		// Health checks
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("store", storeHealthChecker{db: db})
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})

		ops := &handlers.Ops{
			Archivist: archivist,
			Throttle:  limiter,
			Breakers:  breakers,
			Cache:     passCache,
		}
		srv := server.New(host, port, ops, &handlers.Passes{Service: passService})

		shutdownTimeout := appConfig.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Background loops run until the serve context is cancelled.
		serveCtx, cancelServe := context.WithCancel(cmd.Context())
		defer cancelServe()

		passCache.Start(serveCtx)
		archivist.Start(serveCtx)
		metrics.SetServerStartTime(time.Now().Unix())

		// Shutdown handlers run LIFO: HTTP server first, then the
		// background loops, the store, and finally the log flush.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Stopping background workers...")
			cancelServe()
			archivist.Stop()
			passCache.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("Store close returned error", zap.Error(err))
			}
			logger.Info("Background workers stopped")
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		group, groupCtx := errgroup.WithContext(serveCtx)

		group.Go(func() error {
			logger.Info("Starting HTTP server...",
				zap.String("host", host),
				zap.Int("port", port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})

		group.Go(func() error {
			return signals.Listen(groupCtx)
		})

		if err := group.Wait(); err != nil && err != context.Canceled {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
