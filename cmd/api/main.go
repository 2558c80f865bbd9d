package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workorders_backend/internal/email"
	"workorders_backend/internal/events"
	apphttp "workorders_backend/internal/http"
	"workorders_backend/internal/http/router"
	"workorders_backend/internal/identity"
	"workorders_backend/internal/notification"
	"workorders_backend/internal/notification/inapp"
	"workorders_backend/internal/notification/outbox"
	"workorders_backend/internal/notification/sse"
	"workorders_backend/internal/orders"
	"workorders_backend/migrations"
	"workorders_backend/platform/config"
	"workorders_backend/platform/db"
	"workorders_backend/platform/logger"
	"workorders_backend/platform/retry"
	"workorders_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env, logger.WithFile(cfg.GetLogFile(), cfg.GetLogMaxSizeMB(), cfg.GetLogMaxBackups()))
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "orderStore", cfg.GetOrderStoreDriver())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := retry.Do(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := retry.Do(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	health := []apphttp.HealthChecker{db.NewPoolAdapter(pool)}

	var mongoDB *mongo.Database
	if cfg.GetOrderStoreDriver() == config.StoreDriverMongo {
		if err := retry.Do(ctx, log, "mongo connection", 5, 2*time.Second, func() error {
			database, err := db.NewMongoDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			mongoDB = database
			return nil
		}); err != nil {
			log.Error("failed to connect to mongo", "error", err)
			panic("failed to connect to mongo: " + err.Error())
		}
		defer func() { _ = db.CloseMongo(context.Background(), mongoDB) }()
		health = append(health, db.NewMongoHealth(mongoDB))
		log.Info("mongo connection established", "database", cfg.GetMongoDatabase())
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// One stream service carries both order changes and in-app notifications
	stream := sse.New(log)
	defer stream.Close()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	identityModule := identity.NewModule(pool, val)

	inAppService := inapp.NewService(inapp.NewRepository(pool), stream, log)
	notificationModule := notification.New(inAppService, outbox.New(pool), sender, identityModule.Directory(), cfg, log)
	if cfg.IsSlackEnabled() {
		notificationModule.SetChatNotifier(notification.NewSlackNotifier(cfg.GetSlackWebhookURL()))
	}
	notificationModule.RegisterHandlers(eventBus)

	backends, err := orders.OpenBackends(ctx, cfg, pool, mongoDB)
	if err != nil {
		log.Error("failed to open order store", "error", err)
		panic("failed to open order store: " + err.Error())
	}
	ordersModule := orders.NewModule(backends, eventBus, stream, val, log)
	go ordersModule.RunChangeFeed(ctx)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			identityModule,
			ordersModule,
			notificationModule,
		},
	}

	engine := router.New(app)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Streams never finish on their own; close them before draining.
		stream.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}
