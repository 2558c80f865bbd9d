package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"workorders_backend/internal/email"
	"workorders_backend/internal/events"
	"workorders_backend/internal/identity"
	"workorders_backend/internal/notification/inapp"
	"workorders_backend/internal/notification/outbox"
	"workorders_backend/internal/notification/sse"
	"workorders_backend/platform/apperr"
	"workorders_backend/platform/logger"

	"github.com/google/uuid"
)

type testNotificationConfig struct{}

func (testNotificationConfig) GetAppBaseURL() string { return "https://app.example.com/" }

type memoryInApp struct {
	created []inapp.CreateParams
}

func (s *memoryInApp) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	s.created = append(s.created, p)
	return inapp.Notification{ID: uuid.New(), UserID: p.UserID, Kind: p.Kind, Title: p.Title, Content: p.Content}, nil
}
func (s *memoryInApp) List(context.Context, string, int, int) ([]inapp.Notification, int, error) {
	return nil, 0, nil
}
func (s *memoryInApp) CountUnread(context.Context, string) (int, error)  { return 0, nil }
func (s *memoryInApp) MarkRead(context.Context, string, uuid.UUID) error { return nil }
func (s *memoryInApp) MarkAllRead(context.Context, string) error         { return nil }

type recordingPusher struct {
	pushed map[string]int
}

func (p *recordingPusher) Publish(userID string, _ sse.Event) {
	p.pushed[userID]++
}

type memoryOutbox struct {
	records   map[uuid.UUID]*outbox.Record
	inserted  []outbox.InsertParams
	lastError map[uuid.UUID]string
	retries   int
}

func newMemoryOutbox() *memoryOutbox {
	return &memoryOutbox{records: map[uuid.UUID]*outbox.Record{}, lastError: map[uuid.UUID]string{}}
}

func (o *memoryOutbox) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	o.records[id] = &outbox.Record{
		ID:          id,
		RecipientID: p.RecipientID,
		Kind:        p.Kind,
		Template:    p.Template,
		Payload:     payload,
		Status:      outbox.StatusPending,
	}
	o.inserted = append(o.inserted, p)
	return id, nil
}

func (o *memoryOutbox) GetByID(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	rec, ok := o.records[id]
	if !ok {
		return outbox.Record{}, apperr.NotFound("outbox record not found")
	}
	return *rec, nil
}

func (o *memoryOutbox) ClaimPending(context.Context, int) ([]outbox.Record, error) { return nil, nil }

func (o *memoryOutbox) MarkPending(_ context.Context, id uuid.UUID, _ *string) error {
	o.records[id].Status = outbox.StatusPending
	return nil
}

func (o *memoryOutbox) MarkProcessing(_ context.Context, id uuid.UUID) error {
	o.records[id].Status = outbox.StatusProcessing
	o.records[id].Attempts++
	return nil
}

func (o *memoryOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	o.records[id].Status = outbox.StatusSucceeded
	return nil
}

func (o *memoryOutbox) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	o.records[id].Status = outbox.StatusFailed
	o.lastError[id] = lastError
	return nil
}

func (o *memoryOutbox) ScheduleRetry(_ context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	o.records[id].Status = outbox.StatusPending
	o.records[id].RunAt = runAt
	o.lastError[id] = lastError
	o.retries++
	return nil
}

func (o *memoryOutbox) DeleteFinishedBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type testSender struct {
	sent []string
	last email.OrderMessage
	err  error
}

func (s *testSender) SendOrderNotification(_ context.Context, toEmail string, msg email.OrderMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, toEmail)
	s.last = msg
	return nil
}

type testDirectory map[string]identity.User

func (d testDirectory) GetUser(_ context.Context, id string) (identity.User, error) {
	u, ok := d[id]
	if !ok {
		return identity.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

type recordingChat struct {
	alerts []ChatAlert
}

func (c *recordingChat) Notify(_ context.Context, alert ChatAlert) error {
	c.alerts = append(c.alerts, alert)
	return nil
}

type fixture struct {
	module *Module
	inApp  *memoryInApp
	pusher *recordingPusher
	outbox *memoryOutbox
	sender *testSender
	chat   *recordingChat
}

func newFixture() *fixture {
	log := logger.New("development", logger.WithWriter(io.Discard))
	f := &fixture{
		inApp:  &memoryInApp{},
		pusher: &recordingPusher{pushed: map[string]int{}},
		outbox: newMemoryOutbox(),
		sender: &testSender{},
		chat:   &recordingChat{},
	}
	dir := testDirectory{
		"mgr": {ID: "mgr", Name: "Maria", Email: "maria@example.com", Role: "manager"},
		"w1":  {ID: "w1", Name: "Wim", Email: "wim@example.com", Role: "worker"},
		"w2":  {ID: "w2", Name: "Wout", Role: "worker"},
	}
	svc := inapp.NewService(f.inApp, f.pusher, log)
	f.module = New(svc, f.outbox, f.sender, dir, testNotificationConfig{}, log)
	f.module.SetChatNotifier(f.chat)
	return f
}

func ref() events.OrderRef {
	return events.OrderRef{OrderID: "o1", Title: "Replace boiler", ManagerID: "mgr", ManagerName: "Maria", Status: "assigned"}
}

func (f *fixture) recipients() []string {
	var out []string
	for _, p := range f.inApp.created {
		out = append(out, p.UserID)
	}
	return out
}

func TestOrderCreatedNotifiesWorkersThatWantIt(t *testing.T) {
	f := newFixture()

	err := f.module.Handle(context.Background(), events.OrderCreated{
		BaseEvent: events.NewBaseEvent(),
		OrderRef:  ref(),
		Workers: []events.AssignedWorker{
			{UserID: "w1", Name: "Wim", Notify: true, IsTeamLead: true},
			{UserID: "w2", Name: "Wout", Notify: false},
		},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	got := f.recipients()
	if len(got) != 1 || got[0] != "w1" {
		t.Fatalf("expected only w1 notified, got %v", got)
	}
	if f.pusher.pushed["w1"] != 1 {
		t.Fatalf("expected live push to w1")
	}
	if len(f.outbox.inserted) != 1 || f.outbox.inserted[0].RecipientID != "w1" {
		t.Fatalf("expected one email queued for w1, got %+v", f.outbox.inserted)
	}
	if len(f.chat.alerts) != 0 {
		t.Fatalf("expected no chat alert for creation")
	}
}

func TestWorkersReassignedNotifiesOnlyAdded(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.WorkersReassigned{
		OrderRef: ref(),
		Added:    []events.AssignedWorker{{UserID: "w2", Name: "Wout", Notify: true}},
	})

	got := f.recipients()
	if len(got) != 1 || got[0] != "w2" {
		t.Fatalf("expected w2 notified, got %v", got)
	}
}

func TestOrderAcceptedNotifiesManagerAndChannel(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.OrderAccepted{OrderRef: ref(), WorkerID: "w1", WorkerName: "Wim"})

	got := f.recipients()
	if len(got) != 1 || got[0] != "mgr" {
		t.Fatalf("expected manager notified, got %v", got)
	}
	if f.inApp.created[0].Kind != KindOrderAccepted {
		t.Fatalf("unexpected kind %q", f.inApp.created[0].Kind)
	}
	if len(f.chat.alerts) != 1 || f.chat.alerts[0].Color != colorGood {
		t.Fatalf("expected one good chat alert, got %+v", f.chat.alerts)
	}
}

func TestOrderRejectedCarriesReason(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.OrderRejected{OrderRef: ref(), WorkerID: "w1", WorkerName: "Wim", Reason: "sick"})

	if len(f.inApp.created) != 1 {
		t.Fatalf("expected one notification")
	}
	if want := `Wim rejected "Replace boiler". Reason: sick`; f.inApp.created[0].Content != want {
		t.Fatalf("expected %q, got %q", want, f.inApp.created[0].Content)
	}
	if f.chat.alerts[0].Color != colorDanger {
		t.Fatalf("expected danger alert")
	}
}

func TestOrderCompletedByManagerSkipsManager(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.OrderCompleted{OrderRef: ref(), CompletedBy: "mgr", CompletedByName: "Maria"})

	if len(f.inApp.created) != 0 {
		t.Fatalf("expected no notification to the acting manager, got %v", f.recipients())
	}
}

func TestOrderCompletedByTeamLead(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.OrderCompleted{
		OrderRef:        ref(),
		CompletedBy:     "w1",
		CompletedByName: "Wim",
		ByTeamLead:      true,
		TotalMinutes:    120,
	})

	if len(f.inApp.created) != 1 {
		t.Fatalf("expected manager notified")
	}
	if want := `"Replace boiler" was completed by team lead Wim. Total time: 120 min.`; f.inApp.created[0].Content != want {
		t.Fatalf("expected %q, got %q", want, f.inApp.created[0].Content)
	}
}

func TestOrderReopenedSkipsActor(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.OrderReopened{
		OrderRef:   ref(),
		ReopenedBy: "w1",
		Workers:    []events.AssignedWorker{{UserID: "w1", Notify: true}, {UserID: "w2", Notify: true}},
	})

	got := f.recipients()
	if len(got) != 1 || got[0] != "w2" {
		t.Fatalf("expected only w2 notified, got %v", got)
	}
}

func TestOrderReopenedRespectsOptOut(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.OrderReopened{
		OrderRef:   ref(),
		ReopenedBy: "mgr",
		Workers:    []events.AssignedWorker{{UserID: "w1", Notify: false}, {UserID: "w2", Notify: true}},
	})

	got := f.recipients()
	if len(got) != 1 || got[0] != "w2" {
		t.Fatalf("expected only w2 notified, got %v", got)
	}
	if n := len(f.outbox.records); n != 1 {
		t.Fatalf("expected 1 queued email, got %d", n)
	}
}

func TestOverdueNotifiesPendingWorkersAndManager(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.OrderConfirmationOverdue{
		OrderRef:       ref(),
		Deadline:       time.Now().Add(-time.Hour),
		PendingWorkers: []events.AssignedWorker{{UserID: "w1", Name: "Wim", Notify: true}, {UserID: "w2", Name: "Wout", Notify: true}},
	})

	got := f.recipients()
	if len(got) != 3 || got[2] != "mgr" {
		t.Fatalf("expected w1, w2 then manager, got %v", got)
	}
	if len(f.chat.alerts) != 1 || f.chat.alerts[0].Text != "Waiting for Wim, Wout" {
		t.Fatalf("unexpected chat alerts %+v", f.chat.alerts)
	}
}

func TestOverdueSkipsOptedOutWorkersButNamesThem(t *testing.T) {
	f := newFixture()

	_ = f.module.Handle(context.Background(), events.OrderConfirmationOverdue{
		OrderRef:       ref(),
		Deadline:       time.Now().Add(-time.Hour),
		PendingWorkers: []events.AssignedWorker{{UserID: "w1", Name: "Wim", Notify: false}, {UserID: "w2", Name: "Wout", Notify: true}},
	})

	got := f.recipients()
	if len(got) != 2 || got[0] != "w2" || got[1] != "mgr" {
		t.Fatalf("expected w2 then manager, got %v", got)
	}
	if want := `"Replace boiler" is still waiting for: Wim, Wout.`; f.inApp.created[1].Content != want {
		t.Fatalf("expected %q, got %q", want, f.inApp.created[1].Content)
	}
	if len(f.chat.alerts) != 1 || f.chat.alerts[0].Text != "Waiting for Wim, Wout" {
		t.Fatalf("unexpected chat alerts %+v", f.chat.alerts)
	}
}

func (f *fixture) queueEmail(t *testing.T, recipient string) uuid.UUID {
	t.Helper()
	id, err := f.outbox.Insert(context.Background(), outbox.InsertParams{
		RecipientID: recipient,
		Kind:        outboxKindEmail,
		Template:    templateOrderNotification,
		Payload:     orderEmailPayload{OrderID: "o1", OrderTitle: "Replace boiler", Subject: "Order accepted", Body: "Wim accepted."},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func TestOutboxDueDeliversEmail(t *testing.T) {
	f := newFixture()
	id := f.queueEmail(t, "mgr")

	if err := f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(f.sender.sent) != 1 || f.sender.sent[0] != "maria@example.com" {
		t.Fatalf("expected email to maria, got %v", f.sender.sent)
	}
	if f.sender.last.OrderURL != "https://app.example.com/orders/o1" {
		t.Fatalf("unexpected order link %q", f.sender.last.OrderURL)
	}
	if f.outbox.records[id].Status != outbox.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", f.outbox.records[id].Status)
	}
}

func TestOutboxDueSkipsRecipientWithoutEmail(t *testing.T) {
	f := newFixture()
	id := f.queueEmail(t, "w2")

	_ = f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id})

	if len(f.sender.sent) != 0 {
		t.Fatalf("expected no email sent")
	}
	if f.outbox.records[id].Status != outbox.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", f.outbox.records[id].Status)
	}
}

func TestOutboxDueSchedulesRetryOnSendFailure(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("smtp down")
	id := f.queueEmail(t, "mgr")

	if err := f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id}); err != nil {
		t.Fatalf("delivery errors should not propagate: %v", err)
	}

	rec := f.outbox.records[id]
	if rec.Status != outbox.StatusPending || f.outbox.retries != 1 {
		t.Fatalf("expected retry scheduled, got status %s retries %d", rec.Status, f.outbox.retries)
	}
	if f.outbox.lastError[id] != "smtp down" {
		t.Fatalf("unexpected last error %q", f.outbox.lastError[id])
	}
}

func TestOutboxDueFailsAfterMaxAttempts(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("smtp down")
	id := f.queueEmail(t, "mgr")
	f.outbox.records[id].Attempts = maxOutboxRetryAttempts - 1

	_ = f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id})

	if f.outbox.records[id].Status != outbox.StatusFailed {
		t.Fatalf("expected failed, got %s", f.outbox.records[id].Status)
	}
}

func TestOutboxDueMarksUnsupportedTemplate(t *testing.T) {
	f := newFixture()
	id, _ := f.outbox.Insert(context.Background(), outbox.InsertParams{RecipientID: "mgr", Kind: "sms", Template: "x", Payload: map[string]string{}})

	_ = f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id})

	if f.outbox.records[id].Status != outbox.StatusFailed {
		t.Fatalf("expected failed, got %s", f.outbox.records[id].Status)
	}
}

func TestOutboxDueSkipsFinishedRecord(t *testing.T) {
	f := newFixture()
	id := f.queueEmail(t, "mgr")
	f.outbox.records[id].Status = outbox.StatusSucceeded

	_ = f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id})

	if len(f.sender.sent) != 0 || f.outbox.records[id].Attempts != 0 {
		t.Fatalf("expected finished record to be left alone")
	}
}

func TestComputeOutboxRetryDelayCaps(t *testing.T) {
	if got := computeOutboxRetryDelay(1); got != outboxRetryBaseDelay {
		t.Fatalf("expected base delay, got %s", got)
	}
	if got := computeOutboxRetryDelay(2); got != 2*outboxRetryBaseDelay {
		t.Fatalf("expected doubled delay, got %s", got)
	}
	if got := computeOutboxRetryDelay(20); got != outboxRetryMaxDelay {
		t.Fatalf("expected capped delay, got %s", got)
	}
}
