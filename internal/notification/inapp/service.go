package inapp

import (
	"context"

	"workorders_backend/internal/notification/sse"
	"workorders_backend/platform/apperr"
	"workorders_backend/platform/logger"

	"github.com/google/uuid"
)

// Pusher delivers a live event to a connected user.
type Pusher interface {
	Publish(userID string, event sse.Event)
}

type Service struct {
	repo   Store
	pusher Pusher
	log    *logger.Logger
}

func NewService(repo Store, pusher Pusher, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		pusher: pusher,
		log:    log,
	}
}

type SendParams struct {
	UserID  string
	OrderID string
	Kind    string
	Title   string
	Content string
}

// Send persists the notification and pushes it via SSE if the user is online.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}
	if p.Kind == "" {
		p.Kind = "info"
	}

	var orderID *string
	if p.OrderID != "" {
		orderID = &p.OrderID
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		UserID:  p.UserID,
		OrderID: orderID,
		Kind:    p.Kind,
		Title:   p.Title,
		Content: p.Content,
	})
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to persist in-app notification", "error", err, "user_id", p.UserID)
		}
		return err
	}

	if s.pusher != nil {
		s.pusher.Publish(p.UserID, sse.Event{
			Type:    sse.EventInAppNotification,
			OrderID: p.OrderID,
			Message: notif.Title,
			Data:    notif,
		})
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, userID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllRead(ctx, userID)
}
