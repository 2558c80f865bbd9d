package handler

import (
	"net/http"

	"workorders_backend/internal/orders/domain"
	"workorders_backend/internal/orders/service"
	"workorders_backend/internal/orders/transport"
	"workorders_backend/platform/httpkit"
	"workorders_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for orders
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new orders handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the order routes. Write routes pass through
// writeMiddleware first.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, writeMiddleware ...gin.HandlerFunc) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/time-entries", h.ListTimeEntries)

	writes := rg.Group("", writeMiddleware...)
	writes.POST("", h.Create)
	writes.POST("/:id/accept", h.Accept)
	writes.POST("/:id/reject", h.Reject)
	writes.POST("/:id/reassign", h.Reassign)
	writes.POST("/:id/complete", h.Complete)
	writes.POST("/:id/reopen", h.Reopen)
	writes.POST("/:id/finalize", h.Finalize)
	writes.PUT("/:id/time", h.RecordTime)
}

// actorFromIdentity maps the token's identity onto the workflow's actor.
func actorFromIdentity(identity httpkit.Identity) domain.Actor {
	return domain.Actor{
		ID:   identity.UserID().String(),
		Name: identity.Name(),
		Role: domain.RoleFromClaims(identity.Roles()),
	}
}

// List handles GET /api/v1/orders. Workers only see their own orders.
func (h *Handler) List(c *gin.Context) {
	var req transport.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	actor := actorFromIdentity(identity)

	filter := domain.OrderFilter{
		Status:    domain.OrderStatus(req.Status),
		WorkerID:  req.WorkerID,
		ManagerID: req.ManagerID,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}.Paged()
	if req.Mine || actor.Role == domain.RoleWorker {
		filter.WorkerID = actor.ID
	}

	orders, err := h.svc.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.OrderListResponse{
		Items:  make([]transport.OrderResponse, 0, len(orders)),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for i := range orders {
		resp.Items = append(resp.Items, transport.ToOrderResponse(&orders[i]))
	}
	httpkit.OK(c, resp)
}

// Create handles POST /api/v1/orders
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.Create(c.Request.Context(), actorFromIdentity(identity), service.CreateInput{
		Title:                req.Title,
		Description:          req.Description,
		Category:             req.Category,
		Priority:             req.Priority,
		ClientName:           req.ClientName,
		ClientID:             req.ClientID,
		ProjectName:          req.ProjectName,
		ProjectID:            req.ProjectID,
		ScheduledStart:       req.ScheduledStart,
		ScheduledEnd:         req.ScheduledEnd,
		ConfirmationDeadline: req.ConfirmationDeadline,
		Workers:              toWorkerInputs(req.Workers),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToOrderResponse(order))
}

// GetByID handles GET /api/v1/orders/:id
func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.Get(c.Request.Context(), actorFromIdentity(identity), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

// ListTimeEntries handles GET /api/v1/orders/:id/time-entries
func (h *Handler) ListTimeEntries(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	entries, err := h.svc.ListTimeEntries(c.Request.Context(), actorFromIdentity(identity), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]transport.TimeEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, transport.ToTimeEntryResponse(e))
	}
	httpkit.OK(c, gin.H{"items": resp})
}

// Accept handles POST /api/v1/orders/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.Accept(c.Request.Context(), c.Param("id"), identity.UserID().String(), identity.Name())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

// Reject handles POST /api/v1/orders/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	var req transport.RejectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.Reject(c.Request.Context(), c.Param("id"), identity.UserID().String(), identity.Name(), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

// Reassign handles POST /api/v1/orders/:id/reassign
func (h *Handler) Reassign(c *gin.Context) {
	var req transport.ReassignWorkersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.Reassign(c.Request.Context(), c.Param("id"), actorFromIdentity(identity), toWorkerInputs(req.Workers))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

// Complete handles POST /api/v1/orders/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.CompleteOrder(c.Request.Context(), c.Param("id"), actorFromIdentity(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

// Reopen handles POST /api/v1/orders/:id/reopen
func (h *Handler) Reopen(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.Reopen(c.Request.Context(), c.Param("id"), actorFromIdentity(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

// RecordTime handles PUT /api/v1/orders/:id/time for the caller's own entry.
func (h *Handler) RecordTime(c *gin.Context) {
	var req transport.RecordTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.RecordWorkerTime(c.Request.Context(), c.Param("id"), identity.UserID().String(), req.Minutes, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

// Finalize handles POST /api/v1/orders/:id/finalize
func (h *Handler) Finalize(c *gin.Context) {
	var req transport.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	order, err := h.svc.FinalizeAsTeamLead(c.Request.Context(), c.Param("id"), identity.UserID().String(), req.Times, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

func toWorkerInputs(reqs []transport.WorkerRequest) []service.WorkerInput {
	out := make([]service.WorkerInput, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, service.WorkerInput{
			UserID:     r.UserID,
			Name:       r.Name,
			IsTeamLead: r.IsTeamLead,
			Notify:     r.Notify,
		})
	}
	return out
}
