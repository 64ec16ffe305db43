package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/finsuite/accessgate/pkg/audit"
	"github.com/finsuite/accessgate/pkg/config"
	"github.com/finsuite/accessgate/pkg/decisioncache"
	"github.com/finsuite/accessgate/pkg/entitlement"
	"github.com/finsuite/accessgate/pkg/gate"
	"github.com/finsuite/accessgate/pkg/middleware"
	"github.com/finsuite/accessgate/pkg/observability"
	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/rbac"
	"github.com/finsuite/accessgate/pkg/tenant"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database.
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("Failed to ping database")
		os.Exit(1)
	}

	entStore := entitlement.NewSQLStore(db)
	rbStore := rbac.NewSQLStore(db)
	if err := entStore.Migrate(ctx); err != nil {
		logger.WithError(err).Error("Entitlement migration failed")
		os.Exit(1)
	}
	if err := rbStore.Migrate(ctx); err != nil {
		logger.WithError(err).Error("Role migration failed")
		os.Exit(1)
	}

	// Metrics.
	metrics := observability.NewMetrics(nil)
	cacheMetrics := decisioncache.NewMetrics(metrics.Registry())
	gateMetrics := gate.NewMetrics(metrics.Registry())

	// Decision caches: Redis when configured, otherwise in-process memory.
	var (
		entCache    decisioncache.Cache[entitlement.Snapshot]
		rbCache     decisioncache.Cache[permissions.Set]
		redisClient *redis.Client
	)
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			// Accept a bare host:port as well.
			opts = &redis.Options{Addr: cfg.Cache.RedisURL}
		}
		if cfg.Cache.RedisPassword != "" {
			opts.Password = cfg.Cache.RedisPassword
		}
		opts.DB = cfg.Cache.RedisDB
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Error("Failed to connect to redis")
			os.Exit(1)
		}
		defer redisClient.Close()

		entCache = decisioncache.NewRedisFromClient[entitlement.Snapshot](redisClient, "accessgate", cfg.Cache.EntitlementTTL)
		rbCache = decisioncache.NewRedisFromClient[permissions.Set](redisClient, "accessgate", cfg.Cache.RBACTTL)
		logger.WithField("addr", opts.Addr).Info("Using redis decision cache")
	} else {
		mc, err := decisioncache.NewMemory[entitlement.Snapshot](cfg.Cache.MaxEntries, cfg.Cache.EntitlementTTL,
			decisioncache.WithMetrics[entitlement.Snapshot](cacheMetrics, "entitlement"))
		if err != nil {
			logger.WithError(err).Error("Failed to create entitlement cache")
			os.Exit(1)
		}
		rc, err := decisioncache.NewMemory[permissions.Set](cfg.Cache.MaxEntries, cfg.Cache.RBACTTL,
			decisioncache.WithMetrics[permissions.Set](cacheMetrics, "rbac"))
		if err != nil {
			logger.WithError(err).Error("Failed to create rbac cache")
			os.Exit(1)
		}
		entCache, rbCache = mc, rc
		logger.Info("Using in-process decision cache")
	}

	// Checkers.
	var policy config.Policy
	if cfg.PolicyPath != "" {
		p, err := config.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			logger.WithError(err).Error("Failed to load policy file")
			os.Exit(1)
		}
		policy = *p
	}
	entChecker := entitlement.NewChecker(entStore, entCache, policy.AlwaysOnModules)
	rbChecker := rbac.NewChecker(rbStore, permissions.SuiteCatalog(), rbCache)

	// Audit sinks.
	var sinks []audit.Sink
	if cfg.Audit.LogEnabled {
		auditLog := logrus.New()
		auditLog.SetFormatter(&logrus.JSONFormatter{})
		sinks = append(sinks, audit.NewLogSink(auditLog))
	}
	if cfg.Audit.FilePath != "" {
		fileSink, err := audit.NewFileSink(audit.FileSinkConfig{
			Path:     cfg.Audit.FilePath,
			MaxSize:  cfg.Audit.FileMaxSize,
			MaxFiles: cfg.Audit.FileMaxFiles,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to open audit file sink")
			os.Exit(1)
		}
		defer fileSink.Close()
		sinks = append(sinks, fileSink)
	}
	if cfg.Audit.DBEnabled {
		sqlSink := audit.NewSQLSink(db)
		if err := sqlSink.Migrate(ctx); err != nil {
			logger.WithError(err).Error("Audit migration failed")
			os.Exit(1)
		}
		sinks = append(sinks, sqlSink)
	}
	multiSink := audit.NewMultiSink(sinks...)
	defer multiSink.Wait()

	// Composer.
	composer := gate.NewComposer(tenant.NewResolver(), entChecker, rbChecker,
		gate.WithAuditSink(multiSink),
		gate.WithLogger(logger),
		gate.WithMetrics(gateMetrics),
		gate.WithBypassRoles(policy.SuperAdminRoles),
	)

	// Policy hot reload.
	if cfg.PolicyPath != "" {
		watcher, err := config.NewPolicyWatcher(cfg.PolicyPath, logger, func(p *config.Policy) {
			entChecker.SetAlwaysOn(p.AlwaysOnModules)
			composer.SetBypassRoles(p.SuperAdminRoles)
		})
		if err != nil {
			logger.WithError(err).Error("Failed to watch policy file")
			os.Exit(1)
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("Policy watcher stopped")
			}
		}()
	}

	// Periodic entitlement cache warmup.
	if cfg.Cache.WarmupSchedule != "" {
		refresher := entitlement.NewRefresher(entChecker, entStore.ListOrgs, cfg.Cache.WarmupSchedule, logger)
		if err := refresher.Start(); err != nil {
			logger.WithError(err).Error("Failed to start entitlement refresher")
			os.Exit(1)
		}
		defer refresher.Stop()
	}

	// API server.
	router := mux.NewRouter()
	if cfg.Observability.MetricsEnabled {
		router.Use(metrics.Middleware)
	}
	// Identity headers are optional on the decision API: the PDP endpoint
	// carries the principal in the request body.
	router.Use(middleware.NewPrincipalMiddleware(true).Handler)
	gate.NewHandlers(composer, entChecker, rbChecker, logger).RegisterRoutes(router)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics server on a separate port for probes.
	health := observability.NewHealthChecker(db, redisClient)
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", health.Liveness).Methods("GET")
	healthRouter.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("Access decision server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.WithError(err).Error("Server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API server shutdown incomplete")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Health server shutdown incomplete")
	}
	logger.Info("Shutdown complete")
}
