// Package notification turns order events into messages for the people
// involved: in-app notifications, email through the outbox, and an optional
// Slack channel for managers.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"workorders_backend/internal/email"
	"workorders_backend/internal/events"
	apphttp "workorders_backend/internal/http"
	"workorders_backend/internal/identity"
	"workorders_backend/internal/notification/handler"
	"workorders_backend/internal/notification/inapp"
	"workorders_backend/internal/notification/outbox"
	"workorders_backend/platform/apperr"
	"workorders_backend/platform/config"
	"workorders_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	outboxKindEmail           = "email"
	templateOrderNotification = "order_notification"

	maxOutboxRetryAttempts = 5
	outboxRetryBaseDelay   = 30 * time.Second
	outboxRetryMaxDelay    = 30 * time.Minute

	invalidOutboxPayloadPrefix = "invalid payload: "
)

// Notification kinds stored with in-app notifications.
const (
	KindOrderAssigned  = "order_assigned"
	KindOrderAccepted  = "order_accepted"
	KindOrderRejected  = "order_rejected"
	KindOrderCompleted = "order_completed"
	KindOrderReopened  = "order_reopened"
	KindOrderOverdue   = "order_overdue"
)

// Module handles order events and the notification HTTP routes.
type Module struct {
	inAppService *inapp.Service
	inAppHandler *handler.HTTPHandler
	outbox       outbox.Store
	sender       email.Sender
	chat         ChatNotifier
	directory    identity.Directory
	cfg          config.NotificationConfig
	log          *logger.Logger
}

// New creates the notification module. outboxStore, sender and directory may
// be nil, in which case email is not queued or delivered.
func New(inApp *inapp.Service, outboxStore outbox.Store, sender email.Sender, directory identity.Directory, cfg config.NotificationConfig, log *logger.Logger) *Module {
	m := &Module{
		inAppService: inApp,
		outbox:       outboxStore,
		sender:       sender,
		directory:    directory,
		cfg:          cfg,
		log:          log,
	}
	if inApp != nil {
		m.inAppHandler = handler.NewHTTPHandler(inApp)
	}
	return m
}

// SetChatNotifier enables manager alerts in a team channel.
func (m *Module) SetChatNotifier(n ChatNotifier) {
	m.chat = n
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.inAppHandler == nil {
		return
	}

	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)
}

var _ apphttp.Module = (*Module)(nil)

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.OrderCreated{}.EventName(), m)
	bus.Subscribe(events.OrderAccepted{}.EventName(), m)
	bus.Subscribe(events.OrderRejected{}.EventName(), m)
	bus.Subscribe(events.WorkersReassigned{}.EventName(), m)
	bus.Subscribe(events.OrderCompleted{}.EventName(), m)
	bus.Subscribe(events.OrderReopened{}.EventName(), m)
	bus.Subscribe(events.OrderConfirmationOverdue{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle implements events.Handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.OrderCreated:
		return m.handleOrderCreated(ctx, e)
	case events.OrderAccepted:
		return m.handleOrderAccepted(ctx, e)
	case events.OrderRejected:
		return m.handleOrderRejected(ctx, e)
	case events.WorkersReassigned:
		return m.handleWorkersReassigned(ctx, e)
	case events.OrderCompleted:
		return m.handleOrderCompleted(ctx, e)
	case events.OrderReopened:
		return m.handleOrderReopened(ctx, e)
	case events.OrderConfirmationOverdue:
		return m.handleOrderConfirmationOverdue(ctx, e)
	case events.NotificationOutboxDue:
		return m.handleNotificationOutboxDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// message is one notification for one recipient.
type message struct {
	recipientID string
	kind        string
	title       string
	content     string
}

func (m *Module) handleOrderCreated(ctx context.Context, e events.OrderCreated) error {
	for _, w := range e.Workers {
		if !w.Notify {
			continue
		}
		m.deliver(ctx, e.OrderRef, message{
			recipientID: w.UserID,
			kind:        KindOrderAssigned,
			title:       "New order assigned",
			content:     fmt.Sprintf("%s assigned you to %q.%s", actorOr(e.ManagerName, "A manager"), e.Title, leadSuffix(w)),
		})
	}
	return nil
}

func (m *Module) handleWorkersReassigned(ctx context.Context, e events.WorkersReassigned) error {
	for _, w := range e.Added {
		if !w.Notify {
			continue
		}
		m.deliver(ctx, e.OrderRef, message{
			recipientID: w.UserID,
			kind:        KindOrderAssigned,
			title:       "You were added to an order",
			content:     fmt.Sprintf("You were added to %q.%s", e.Title, leadSuffix(w)),
		})
	}
	return nil
}

func (m *Module) handleOrderAccepted(ctx context.Context, e events.OrderAccepted) error {
	who := actorOr(e.WorkerName, e.WorkerID)
	m.notifyManager(ctx, e.OrderRef, e.WorkerID, message{
		kind:    KindOrderAccepted,
		title:   "Order accepted",
		content: fmt.Sprintf("%s accepted %q.", who, e.Title),
	})
	m.postChat(ctx, ChatAlert{
		Title:   fmt.Sprintf("%s accepted %s", who, e.Title),
		Color:   colorGood,
		OrderID: e.OrderID,
		Manager: e.ManagerName,
	})
	return nil
}

func (m *Module) handleOrderRejected(ctx context.Context, e events.OrderRejected) error {
	who := actorOr(e.WorkerName, e.WorkerID)
	content := fmt.Sprintf("%s rejected %q.", who, e.Title)
	if e.Reason != "" {
		content += " Reason: " + e.Reason
	}
	m.notifyManager(ctx, e.OrderRef, e.WorkerID, message{
		kind:    KindOrderRejected,
		title:   "Order rejected",
		content: content,
	})
	m.postChat(ctx, ChatAlert{
		Title:   fmt.Sprintf("%s rejected %s", who, e.Title),
		Text:    e.Reason,
		Color:   colorDanger,
		OrderID: e.OrderID,
		Manager: e.ManagerName,
	})
	return nil
}

func (m *Module) handleOrderCompleted(ctx context.Context, e events.OrderCompleted) error {
	who := actorOr(e.CompletedByName, e.CompletedBy)
	content := fmt.Sprintf("%q was completed by %s.", e.Title, who)
	if e.ByTeamLead {
		content = fmt.Sprintf("%q was completed by team lead %s.", e.Title, who)
	}
	if e.TotalMinutes > 0 {
		content += fmt.Sprintf(" Total time: %d min.", e.TotalMinutes)
	}
	m.notifyManager(ctx, e.OrderRef, e.CompletedBy, message{
		kind:    KindOrderCompleted,
		title:   "Order completed",
		content: content,
	})
	m.postChat(ctx, ChatAlert{
		Title:   fmt.Sprintf("%s completed", e.Title),
		Text:    content,
		Color:   colorGood,
		OrderID: e.OrderID,
		Manager: e.ManagerName,
	})
	return nil
}

func (m *Module) handleOrderReopened(ctx context.Context, e events.OrderReopened) error {
	for _, w := range e.Workers {
		if !w.Notify || w.UserID == e.ReopenedBy {
			continue
		}
		m.deliver(ctx, e.OrderRef, message{
			recipientID: w.UserID,
			kind:        KindOrderReopened,
			title:       "Order reopened",
			content:     fmt.Sprintf("%q was reopened and is in progress again.", e.Title),
		})
	}
	return nil
}

func (m *Module) handleOrderConfirmationOverdue(ctx context.Context, e events.OrderConfirmationOverdue) error {
	names := make([]string, 0, len(e.PendingWorkers))
	for _, w := range e.PendingWorkers {
		names = append(names, actorOr(w.Name, w.UserID))
		if !w.Notify {
			continue
		}
		m.deliver(ctx, e.OrderRef, message{
			recipientID: w.UserID,
			kind:        KindOrderOverdue,
			title:       "Please confirm your order",
			content:     fmt.Sprintf("The confirmation deadline for %q has passed. Please accept or reject it.", e.Title),
		})
	}

	waiting := strings.Join(names, ", ")
	m.notifyManager(ctx, e.OrderRef, "", message{
		kind:    KindOrderOverdue,
		title:   "Order confirmation overdue",
		content: fmt.Sprintf("%q is still waiting for: %s.", e.Title, waiting),
	})
	m.postChat(ctx, ChatAlert{
		Title:   fmt.Sprintf("Confirmation overdue: %s", e.Title),
		Text:    "Waiting for " + waiting,
		Color:   colorWarning,
		OrderID: e.OrderID,
		Manager: e.ManagerName,
	})
	return nil
}

// notifyManager messages the order's manager unless the manager caused the
// event.
func (m *Module) notifyManager(ctx context.Context, ref events.OrderRef, actorID string, msg message) {
	if ref.ManagerID == "" || ref.ManagerID == actorID {
		return
	}
	msg.recipientID = ref.ManagerID
	m.deliver(ctx, ref, msg)
}

// deliver sends msg in-app and queues it for email. Failures are logged.
func (m *Module) deliver(ctx context.Context, ref events.OrderRef, msg message) {
	if msg.recipientID == "" {
		return
	}

	if m.inAppService != nil {
		err := m.inAppService.Send(ctx, inapp.SendParams{
			UserID:  msg.recipientID,
			OrderID: ref.OrderID,
			Kind:    msg.kind,
			Title:   msg.title,
			Content: msg.content,
		})
		if err != nil {
			m.log.SideEffectFailed("in_app_notification", ref.OrderID, err)
		}
	}

	m.enqueueEmail(ctx, ref, msg)
}

type orderEmailPayload struct {
	OrderID    string `json:"orderId"`
	OrderTitle string `json:"orderTitle"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

func (m *Module) enqueueEmail(ctx context.Context, ref events.OrderRef, msg message) {
	if m.outbox == nil {
		return
	}
	_, err := m.outbox.Insert(ctx, outbox.InsertParams{
		RecipientID: msg.recipientID,
		Kind:        outboxKindEmail,
		Template:    templateOrderNotification,
		Payload: orderEmailPayload{
			OrderID:    ref.OrderID,
			OrderTitle: ref.Title,
			Subject:    msg.title,
			Body:       msg.content,
		},
	})
	if err != nil {
		m.log.SideEffectFailed("email_outbox", ref.OrderID, err)
	}
}

func (m *Module) postChat(ctx context.Context, alert ChatAlert) {
	if m.chat == nil {
		return
	}
	if err := m.chat.Notify(ctx, alert); err != nil {
		m.log.SideEffectFailed("slack_alert", alert.OrderID, err)
	}
}

func (m *Module) handleNotificationOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	if m.outbox == nil {
		m.log.Debug("outbox repository not configured; skipping", "outboxId", e.OutboxID.String())
		return nil
	}

	rec, ok, err := m.prepareOutboxRecord(ctx, e.OutboxID)
	if err != nil {
		m.log.Error("failed to load outbox record", "outboxId", e.OutboxID.String(), "error", err)
		return err
	}
	if !ok {
		return nil
	}

	var processErr error
	switch {
	case rec.Kind == outboxKindEmail && rec.Template == templateOrderNotification:
		processErr = m.processOrderEmailOutbox(ctx, rec)
	default:
		m.markOutboxUnsupported(ctx, rec)
		return nil
	}

	if processErr != nil {
		m.handleOutboxDeliveryError(ctx, rec, processErr)
		return nil
	}
	m.log.Info("outbox record processed successfully", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)

	return nil
}

func (m *Module) prepareOutboxRecord(ctx context.Context, outboxID uuid.UUID) (outbox.Record, bool, error) {
	rec, err := m.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return outbox.Record{}, false, err
	}
	if rec.Status == outbox.StatusSucceeded || rec.Status == outbox.StatusFailed {
		m.log.Debug("outbox record already finished; skipping", "outboxId", rec.ID.String(), "status", string(rec.Status))
		return rec, false, nil
	}
	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return outbox.Record{}, false, err
	}
	m.log.Debug("outbox record marked processing", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
	return rec, true, nil
}

func (m *Module) processOrderEmailOutbox(ctx context.Context, rec outbox.Record) error {
	var payload orderEmailPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, invalidOutboxPayloadPrefix+err.Error())
		return nil
	}
	if strings.TrimSpace(payload.Subject) == "" || strings.TrimSpace(payload.Body) == "" {
		_ = m.outbox.MarkFailed(ctx, rec.ID, "invalid payload: subject and body are required")
		return nil
	}

	if m.directory == nil || m.sender == nil {
		return fmt.Errorf("email delivery not configured")
	}

	user, err := m.directory.GetUser(ctx, rec.RecipientID)
	if apperr.Is(err, apperr.KindNotFound) {
		m.log.Debug("outbox recipient not in directory; marking succeeded", "outboxId", rec.ID.String(), "recipientId", rec.RecipientID)
		_ = m.outbox.MarkSucceeded(ctx, rec.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(user.Email) == "" {
		m.log.Debug("outbox recipient has no email; marking succeeded", "outboxId", rec.ID.String(), "recipientId", rec.RecipientID)
		_ = m.outbox.MarkSucceeded(ctx, rec.ID)
		return nil
	}

	err = m.sender.SendOrderNotification(ctx, user.Email, email.OrderMessage{
		RecipientName: user.Name,
		Subject:       payload.Subject,
		Heading:       payload.Subject,
		Body:          payload.Body,
		OrderTitle:    payload.OrderTitle,
		OrderURL:      m.orderLink(payload.OrderID),
	})
	if err != nil {
		return err
	}

	_ = m.outbox.MarkSucceeded(ctx, rec.ID)
	m.log.Info("email outbox delivered", "outboxId", rec.ID.String(), "recipientId", rec.RecipientID, "orderId", payload.OrderID)
	return nil
}

func (m *Module) handleOutboxDeliveryError(ctx context.Context, rec outbox.Record, deliveryErr error) {
	attempt := rec.Attempts + 1
	if attempt >= maxOutboxRetryAttempts {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Warn("notification outbox exhausted retries",
			"outboxId", rec.ID.String(),
			"kind", rec.Kind,
			"template", rec.Template,
			"attempt", attempt,
			"maxAttempts", maxOutboxRetryAttempts,
			"error", deliveryErr,
		)
		return
	}

	retryAt := time.Now().UTC().Add(computeOutboxRetryDelay(attempt))
	if err := m.outbox.ScheduleRetry(ctx, rec.ID, retryAt, deliveryErr.Error()); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Error("notification outbox retry scheduling failed; marked failed",
			"outboxId", rec.ID.String(),
			"attempt", attempt,
			"error", err,
		)
		return
	}

	m.log.Warn("notification outbox scheduled retry",
		"outboxId", rec.ID.String(),
		"kind", rec.Kind,
		"template", rec.Template,
		"attempt", attempt,
		"maxAttempts", maxOutboxRetryAttempts,
		"retryAt", retryAt,
		"error", deliveryErr,
	)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}

func (m *Module) markOutboxUnsupported(ctx context.Context, rec outbox.Record) {
	msg := fmt.Sprintf("unsupported outbox kind/template: %s/%s", rec.Kind, rec.Template)
	_ = m.outbox.MarkFailed(ctx, rec.ID, msg)
	m.log.Warn("unsupported outbox record", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
}

func (m *Module) orderLink(orderID string) string {
	if m.cfg == nil || strings.TrimSpace(orderID) == "" {
		return ""
	}
	base := strings.TrimRight(m.cfg.GetAppBaseURL(), "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/orders/%s", base, orderID)
}

func actorOr(name, fallback string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	if fallback == "" {
		return "Someone"
	}
	return fallback
}

func leadSuffix(w events.AssignedWorker) string {
	if w.IsTeamLead {
		return " You are the team lead."
	}
	return ""
}
