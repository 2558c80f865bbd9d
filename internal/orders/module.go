// Package orders provides the work order domain module: assignment,
// acceptance, completion and the live change feed.
package orders

import (
	"context"
	"fmt"
	"time"

	"workorders_backend/internal/events"
	apphttp "workorders_backend/internal/http"
	"workorders_backend/internal/notification/sse"
	"workorders_backend/internal/orders/domain"
	"workorders_backend/internal/orders/handler"
	"workorders_backend/internal/orders/repository"
	"workorders_backend/internal/orders/service"
	"workorders_backend/platform/config"
	"workorders_backend/platform/httpkit"
	"workorders_backend/platform/logger"
	"workorders_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

const changeFeedRetryDelay = 5 * time.Second

// Backends holds the order store and time ledger chosen by configuration.
type Backends struct {
	Store  service.OrderStore
	Ledger service.TimeLedger
}

// OpenBackends selects the storage driver. Mongo needs a database handle;
// Postgres needs the pool.
func OpenBackends(ctx context.Context, cfg config.StoreConfig, pool *pgxpool.Pool, mongoDB *mongo.Database) (Backends, error) {
	switch cfg.GetOrderStoreDriver() {
	case "", config.StoreDriverPostgres:
		if pool == nil {
			return Backends{}, fmt.Errorf("postgres order store requires a database pool")
		}
		return Backends{
			Store:  repository.NewPostgresStore(pool),
			Ledger: repository.NewPostgresLedger(pool),
		}, nil
	case config.StoreDriverMongo:
		if mongoDB == nil {
			return Backends{}, fmt.Errorf("mongo order store requires a database")
		}
		store := repository.NewMongoStore(mongoDB)
		if err := store.EnsureIndexes(ctx); err != nil {
			return Backends{}, fmt.Errorf("ensure order indexes: %w", err)
		}
		return Backends{
			Store:  store,
			Ledger: repository.NewMongoLedger(mongoDB),
		}, nil
	default:
		return Backends{}, fmt.Errorf("unknown order store driver %q", cfg.GetOrderStoreDriver())
	}
}

// Module represents the orders domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
	stream  *sse.Service
	log     *logger.Logger
}

// NewModule creates a new orders module with all dependencies wired
func NewModule(b Backends, bus events.Bus, stream *sse.Service, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(b.Store, b.Ledger, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
		stream:  stream,
		log:     log,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "orders"
}

// RegisterRoutes registers the module's routes under /api/v1/orders
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	orders := ctx.Protected.Group("/orders")
	if m.stream != nil {
		orders.GET("/stream", m.stream.Handler(streamUserID))
	}

	var writeMiddleware []gin.HandlerFunc
	if ctx.WriteLimiter != nil {
		writeMiddleware = append(writeMiddleware, ctx.WriteLimiter.RateLimit())
	}
	m.handler.RegisterRoutes(orders, writeMiddleware...)
}

// RunChangeFeed pushes committed order writes to every connected stream
// until ctx is done. A broken subscription is re-established.
func (m *Module) RunChangeFeed(ctx context.Context) {
	if m.stream == nil {
		return
	}

	for {
		err := m.Service.Watch(ctx, func(change domain.OrderChange) {
			m.stream.Broadcast(sse.Event{
				Type:    sse.EventOrderChanged,
				OrderID: change.OrderID,
				Data:    change,
			})
		})
		if ctx.Err() != nil {
			return
		}
		m.log.Warn("order change feed interrupted; retrying", "error", err, "retryIn", changeFeedRetryDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(changeFeedRetryDelay):
		}
	}
}

func streamUserID(c *gin.Context) (string, bool) {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		return "", false
	}
	return identity.UserID().String(), true
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
