package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/idbridge/pkg/api"
	"github.com/platinummonkey/idbridge/pkg/config"
	"github.com/platinummonkey/idbridge/pkg/events"
	"github.com/platinummonkey/idbridge/pkg/identity"
	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/provider"
	"github.com/platinummonkey/idbridge/pkg/reconcile"
	"github.com/platinummonkey/idbridge/pkg/resolver"
	"github.com/platinummonkey/idbridge/pkg/rolemap"
	"github.com/platinummonkey/idbridge/pkg/session"
	"github.com/platinummonkey/idbridge/pkg/webhook"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Identity store
	db, err := sql.Open("postgres", cfg.Store.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to open identity store: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Store.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Store.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping identity store: %v", err)
	}
	if err := identity.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate identity store: %v", err)
	}

	idStore := identity.NewStore(db)
	var resolverStore resolver.Store = idStore
	var roleStore reconcile.RoleStore = idStore
	if cfg.Store.IdentityCacheLen > 0 {
		cached, err := identity.NewCachedStore(idStore, cfg.Store.IdentityCacheLen)
		if err != nil {
			log.Fatalf("Failed to create identity cache: %v", err)
		}
		resolverStore = cached
		roleStore = cached
	}

	// Session store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping session store: %v", err)
	}
	sessions := session.NewRedisStore(redisClient, cfg.Server.SessionTTL)

	// Role mapping
	var mapping rolemap.Source
	if cfg.RoleMapping.Watch {
		watcher, err := rolemap.NewWatcher(cfg.RoleMapping.Path, logger)
		if err != nil {
			log.Fatalf("Failed to load role mapping: %v", err)
		}
		go watcher.Run(ctx)
		mapping = watcher
	} else {
		m, err := rolemap.Load(cfg.RoleMapping.Path)
		if err != nil {
			log.Fatalf("Failed to load role mapping: %v", err)
		}
		mapping = rolemap.NewStatic(m)
	}

	// Provider clients
	exchanger, err := provider.NewOIDCExchanger(ctx, cfg.Provider)
	if err != nil {
		log.Fatalf("Failed to initialize provider exchanger: %v", err)
	}
	management := provider.NewManagementClient(ctx, cfg.Provider, metrics)

	// Core wiring
	bus := events.NewBus()
	res := resolver.NewResolver(resolverStore, management, metrics, logger, cfg.Provider.DefaultLocale)
	rec := reconcile.NewReconciler(roleStore, management, mapping, metrics, logger)
	poller := reconcile.NewPoller(management, metrics, logger)
	reconcile.Subscribe(bus, rec, poller, logger)

	establisher := session.NewEstablisher(exchanger, res, management, sessions, bus, metrics, logger)
	normalizer := webhook.NewNormalizer(metrics, logger)

	server := api.NewServer(exchanger, establisher, sessions, management, normalizer, bus,
		cfg.Server, cfg.Webhook, metrics, logger)

	// Periodic sweep
	var sweeper *reconcile.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = reconcile.NewSweeper(idStore, rec, cfg.Sweep.Schedule, cfg.Sweep.Workers, logger)
		if err := sweeper.Start(ctx); err != nil {
			log.Fatalf("Failed to start role sweep: %v", err)
		}
	}

	// Health and metrics server
	health := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	// Application server
	appServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, appServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return healthServer.Shutdown(shutdownCtx)
	})
	if sweeper != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			sweeper.Stop()
			return nil
		})
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})

	go func() {
		logger.WithField("addr", appServer.Addr).Info("identity bridge listening")
		if err := appServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}
