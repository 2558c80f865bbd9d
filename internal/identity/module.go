package identity

import (
	apphttp "workorders_backend/internal/http"
	"workorders_backend/internal/identity/handler"
	"workorders_backend/internal/identity/repository"
	"workorders_backend/internal/identity/service"
	"workorders_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

func (m *Module) Name() string {
	return "identity"
}

// Directory exposes the user directory to other modules.
func (m *Module) Directory() Directory {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)
	m.handler.RegisterSelfRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
