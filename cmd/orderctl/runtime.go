package main

import (
	"context"
	"io"

	"workorders_backend/internal/email"
	"workorders_backend/internal/events"
	"workorders_backend/internal/identity"
	"workorders_backend/internal/notification"
	"workorders_backend/internal/notification/inapp"
	"workorders_backend/internal/notification/outbox"
	"workorders_backend/internal/orders"
	"workorders_backend/internal/orders/service"
	"workorders_backend/platform/config"
	"workorders_backend/platform/db"
	"workorders_backend/platform/logger"
	"workorders_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// runtime holds the connections one command needs. Close releases them.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	pool    *pgxpool.Pool
	mongoDB *mongo.Database
	orders  *service.Service
}

func loadConfig(logOut io.Writer) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Env, logger.WithWriter(logOut)), nil
}

// openRuntime connects to the configured stores and wires the order service
// with the notification handlers, so workflow commands notify as the API does.
func openRuntime(ctx context.Context, logOut io.Writer) (*runtime, error) {
	cfg, log, err := loadConfig(logOut)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: log}
	if rt.pool, err = db.NewPool(ctx, cfg); err != nil {
		return nil, err
	}
	if cfg.GetOrderStoreDriver() == config.StoreDriverMongo {
		if rt.mongoDB, err = db.NewMongoDatabase(ctx, cfg); err != nil {
			rt.Close()
			return nil, err
		}
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	bus := events.NewInMemoryBus(log)
	identityModule := identity.NewModule(rt.pool, validator.New())
	inAppService := inapp.NewService(inapp.NewRepository(rt.pool), nil, log)
	notificationModule := notification.New(inAppService, outbox.New(rt.pool), sender, identityModule.Directory(), cfg, log)
	if cfg.IsSlackEnabled() {
		notificationModule.SetChatNotifier(notification.NewSlackNotifier(cfg.GetSlackWebhookURL()))
	}
	notificationModule.RegisterHandlers(bus)

	backends, err := orders.OpenBackends(ctx, cfg, rt.pool, rt.mongoDB)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.orders = service.New(backends.Store, backends.Ledger, bus, log)
	return rt, nil
}

func (r *runtime) Close() {
	if r.mongoDB != nil {
		_ = db.CloseMongo(context.Background(), r.mongoDB)
	}
	if r.pool != nil {
		r.pool.Close()
	}
}
