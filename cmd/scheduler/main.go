package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workorders_backend/internal/email"
	"workorders_backend/internal/events"
	"workorders_backend/internal/identity"
	"workorders_backend/internal/notification"
	"workorders_backend/internal/notification/inapp"
	"workorders_backend/internal/notification/outbox"
	"workorders_backend/internal/orders"
	"workorders_backend/internal/orders/service"
	"workorders_backend/internal/scheduler"
	"workorders_backend/platform/config"
	"workorders_backend/platform/db"
	"workorders_backend/platform/logger"
	"workorders_backend/platform/retry"
	"workorders_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env, logger.WithFile(cfg.GetLogFile(), cfg.GetLogMaxSizeMB(), cfg.GetLogMaxBackups()))
	log.Info("starting scheduler", "env", cfg.Env, "sweep", cfg.GetDeadlineSweepSpec())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	}

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Notifications raised here are persisted; the API process owns live streams.
	outboxRepo := outbox.New(pool)
	identityModule := identity.NewModule(pool, validator.New())
	inAppService := inapp.NewService(inapp.NewRepository(pool), nil, log)
	notificationModule := notification.New(inAppService, outboxRepo, sender, identityModule.Directory(), cfg, log)
	if cfg.IsSlackEnabled() {
		notificationModule.SetChatNotifier(notification.NewSlackNotifier(cfg.GetSlackWebhookURL()))
	}
	notificationModule.RegisterHandlers(eventBus)

	backends, err := orders.OpenBackends(ctx, cfg, pool, mongoDB)
	if err != nil {
		log.Error("failed to open order store", "error", err)
		panic("failed to open order store: " + err.Error())
	}
	orderService := service.New(backends.Store, backends.Ledger, eventBus, log)

	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, outboxRepo, log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		panic("failed to initialize outbox dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()

	sweepClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = sweepClient.Close() }()

	deadlineSweep, err := scheduler.NewDeadlineSweep(cfg.GetDeadlineSweepSpec(), sweepClient, log)
	if err != nil {
		log.Error("failed to initialize deadline sweep", "error", err)
		panic("failed to initialize deadline sweep: " + err.Error())
	}

	outboxCleanup := scheduler.NewOutboxCleanup(outboxRepo, log, time.Hour, cfg.GetOutboxRetention())

	worker, err := scheduler.NewWorker(cfg, orderService, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { dispatcher.Run(gctx); return nil })
	g.Go(func() error { deadlineSweep.Run(gctx); return nil })
	g.Go(func() error { outboxCleanup.Run(gctx); return nil })
	g.Go(func() error {
		worker.Run(gctx)
		if gctx.Err() == nil {
			return errors.New("task worker exited")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped unexpectedly", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}
