package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ovenly/api/internal/config"
	"github.com/ovenly/api/internal/database"
	"github.com/ovenly/api/internal/events"
	"github.com/ovenly/api/internal/lock"
	"github.com/ovenly/api/internal/logger"
	"github.com/ovenly/api/internal/router"
	"github.com/ovenly/api/internal/scheduler"
	"github.com/ovenly/api/internal/service"
	"github.com/ovenly/api/internal/ws"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		baseLogger.Fatal("unable to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		baseLogger.Fatal("unable to ping database", zap.Error(err))
	}
	baseLogger.Info("connected to database")

	queries := database.New(pool)
	loc, _ := time.LoadLocation(cfg.Timezone) // validated by config.Load

	// Edit locks
	var lockStore lock.Store
	switch cfg.Lock.Backend {
	case config.LockBackendPostgres:
		lockStore = lock.NewPostgresStore(queries)
	default:
		lockStore = lock.NewMemoryStore()
	}
	locks := lock.NewManager(lockStore, cfg.Lock.TTL, baseLogger.Named("lock"))
	baseLogger.Info("lock manager ready",
		zap.String("backend", cfg.Lock.Backend),
		zap.Duration("ttl", locks.TTL()))

	// Live events: websocket hub always, AMQP when configured
	hub := ws.NewHub(baseLogger.Named("ws"))
	go hub.Run(ctx)

	publisher := events.Multi{hub}
	if cfg.AMQP.URL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, baseLogger.Named("events.amqp"))
		if err != nil {
			baseLogger.Fatal("failed to init amqp publisher", zap.Error(err))
		}
		defer func() {
			if err := amqpPub.Close(); err != nil {
				baseLogger.Error("failed to close amqp publisher", zap.Error(err))
			}
		}()
		publisher = append(publisher, amqpPub)
		baseLogger.Info("amqp publisher enabled", zap.String("exchange", cfg.AMQP.Exchange))
	} else {
		baseLogger.Warn("AMQP_URL not set, events are only pushed to websocket clients")
	}

	// Services
	internalOrders := service.NewInternalOrderService(
		pool,
		queries,
		func(db database.DBTX) service.InternalOrderStore { return database.New(db) },
		locks,
		publisher,
		baseLogger.Named("svc.internal_orders"),
	)
	services := router.Services{
		InternalOrders: internalOrders,
		Locks:          service.NewLockService(locks, publisher, baseLogger.Named("svc.locks")),
		Demand:         service.NewDemandService(queries, baseLogger.Named("svc.demand")),
		Recipes:        service.NewRecipeService(queries),
	}

	sched := scheduler.NewScheduler(cfg.Scheduler, loc, internalOrders, locks, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(cfg, queries, services, hub, baseLogger.Named("router")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
