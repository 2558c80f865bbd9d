package handler

import (
	"net/http"

	"workorders_backend/internal/identity/service"
	"workorders_backend/internal/identity/transport"
	"workorders_backend/platform/httpkit"
	"workorders_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the directory on the admin group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpsertUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}

// RegisterSelfRoutes mounts routes any authenticated user may call.
func (h *Handler) RegisterSelfRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/me", h.GetMe)
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context(), c.Query("role"))
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ListUsersResponse{Users: make([]transport.UserResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, transport.ToUserResponse(u))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToUserResponse(user))
}

func (h *Handler) GetMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), identity.UserID().String())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToUserResponse(user))
}

func (h *Handler) UpsertUser(c *gin.Context) {
	var req transport.UpsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	user, err := h.svc.UpsertUser(c.Request.Context(), service.UpsertInput{
		ID:    c.Param("id"),
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToUserResponse(user))
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.svc.DeleteUser(c.Request.Context(), c.Param("id")); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusNoContent, nil)
}
