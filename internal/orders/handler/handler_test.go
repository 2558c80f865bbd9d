package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"workorders_backend/internal/events"
	"workorders_backend/internal/orders/domain"
	"workorders_backend/internal/orders/service"
	"workorders_backend/internal/orders/transport"
	"workorders_backend/platform/apperr"
	"workorders_backend/platform/httpkit"
	"workorders_backend/platform/logger"
	"workorders_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	managerID = "11111111-1111-1111-1111-111111111111"
	workerOne = "22222222-2222-2222-2222-222222222222"
	workerTwo = "33333333-3333-3333-3333-333333333333"
	outsider  = "44444444-4444-4444-4444-444444444444"
)

type memoryStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	last   domain.OrderFilter
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Assignment.Users = domain.CloneWorkers(o.Assignment.Users)
	return &c
}

func (s *memoryStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound()
	}
	return cloneOrder(o), nil
}

func (s *memoryStore) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = filter
	var out []domain.Order
	for _, o := range s.orders {
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (s *memoryStore) Update(_ context.Context, order *domain.Order, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound()
	}
	if current.Revision != expectedRevision {
		return apperr.Conflict("order was modified concurrently")
	}
	order.Revision = expectedRevision + 1
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *memoryStore) ListOverdue(context.Context, time.Time, int) ([]domain.Order, error) {
	return nil, nil
}

func (s *memoryStore) MarkOverdueNotified(context.Context, string, time.Time) error { return nil }

func (s *memoryStore) Subscribe(ctx context.Context, _ func(domain.OrderChange)) error {
	<-ctx.Done()
	return ctx.Err()
}

type memoryLedger struct {
	entries []domain.TimeLedgerEntry
}

func (l *memoryLedger) Append(_ context.Context, entries []domain.TimeLedgerEntry) error {
	l.entries = append(l.entries, entries...)
	return nil
}

func (l *memoryLedger) ListByOrder(_ context.Context, orderID string) ([]domain.TimeLedgerEntry, error) {
	var out []domain.TimeLedgerEntry
	for _, e := range l.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

type testServer struct {
	engine *gin.Engine
	store  *memoryStore
	ledger *memoryLedger
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	log := logger.New("development", logger.WithWriter(io.Discard))
	store := &memoryStore{orders: map[string]*domain.Order{}}
	ledger := &memoryLedger{}
	svc := service.New(store, ledger, nopBus{}, log)
	h := New(svc, validator.New())

	engine := gin.New()
	group := engine.Group("/orders", fakeAuth())
	h.RegisterRoutes(group)
	return &testServer{engine: engine, store: store, ledger: ledger}
}

// fakeAuth reads the caller from test headers the way AuthRequired would
// from a token.
func fakeAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set(httpkit.ContextUserIDKey, uuid.MustParse(id))
			c.Set(httpkit.ContextRolesKey, []string{c.GetHeader("X-Test-Role")})
			c.Set(httpkit.ContextUserNameKey, c.GetHeader("X-Test-Name"))
		}
		c.Next()
	}
}

func (s *testServer) do(t *testing.T, method, path, user, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
		req.Header.Set("X-Test-Name", "Tester")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeOrder(t *testing.T, w *httptest.ResponseRecorder) transport.OrderResponse {
	t.Helper()
	var resp transport.OrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode order: %v (%s)", err, w.Body.String())
	}
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httpkit.ErrorResponse {
	t.Helper()
	var resp httpkit.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v (%s)", err, w.Body.String())
	}
	return resp
}

func (s *testServer) createOrder(t *testing.T) transport.OrderResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/orders", managerID, "manager", transport.CreateOrderRequest{
		Title: "Replace boiler",
		Workers: []transport.WorkerRequest{
			{UserID: workerOne, Name: "Wim"},
			{UserID: workerTwo, Name: "Wout", IsTeamLead: true},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	return decodeOrder(t, w)
}

func TestCreateOrderAsManager(t *testing.T) {
	s := newTestServer()

	order := s.createOrder(t)

	if order.Status != "assigned" {
		t.Fatalf("expected assigned, got %s", order.Status)
	}
	if order.TeamLeadID != workerTwo {
		t.Fatalf("expected team lead %s, got %s", workerTwo, order.TeamLeadID)
	}
	if order.ManagerID != managerID || len(order.AssignedUsers) != 2 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderAsWorkerIsForbidden(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodPost, "/orders", workerOne, "worker", transport.CreateOrderRequest{Title: "x"})

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if code := decodeError(t, w).Code; code != "forbidden" {
		t.Fatalf("expected forbidden code, got %q", code)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodPost, "/orders", managerID, "manager", transport.CreateOrderRequest{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAcceptByOutsiderIsNotAssigned(t *testing.T) {
	s := newTestServer()
	order := s.createOrder(t)

	w := s.do(t, http.MethodPost, "/orders/"+order.ID+"/accept", outsider, "worker", nil)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if code := decodeError(t, w).Code; code != "not_assigned" {
		t.Fatalf("expected not_assigned code, got %q", code)
	}
}

func TestAcceptUnknownOrder(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodPost, "/orders/missing/accept", workerOne, "worker", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	s := newTestServer()
	order := s.createOrder(t)

	w := s.do(t, http.MethodPost, "/orders/"+order.ID+"/reject", workerOne, "worker", transport.RejectOrderRequest{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRejectThenAcceptThenFinalize(t *testing.T) {
	s := newTestServer()
	order := s.createOrder(t)
	base := "/orders/" + order.ID

	w := s.do(t, http.MethodPost, base+"/reject", workerOne, "worker", transport.RejectOrderRequest{Reason: "busy"})
	if got := decodeOrder(t, w).Status; got != "assigned" {
		t.Fatalf("after reject: expected assigned, got %s", got)
	}

	w = s.do(t, http.MethodPost, base+"/accept", workerTwo, "worker", nil)
	if got := decodeOrder(t, w).Status; got != "in-progress" {
		t.Fatalf("after accept: expected in-progress, got %s", got)
	}

	w = s.do(t, http.MethodPost, base+"/finalize", workerTwo, "worker", transport.FinalizeRequest{
		Times: map[string]int{workerTwo: 120},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("finalize: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := decodeOrder(t, w).Status; got != "completed" {
		t.Fatalf("after finalize: expected completed, got %s", got)
	}

	w = s.do(t, http.MethodGet, base+"/time-entries", managerID, "manager", nil)
	var entries struct {
		Items []transport.TimeEntryResponse `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries.Items) != 1 || entries.Items[0].DurationSeconds != 7200 {
		t.Fatalf("expected one 7200s entry, got %+v", entries.Items)
	}
}

func TestFinalizeByNonLeadIsForbidden(t *testing.T) {
	s := newTestServer()
	order := s.createOrder(t)

	w := s.do(t, http.MethodPost, "/orders/"+order.ID+"/finalize", workerOne, "worker", transport.FinalizeRequest{
		Times: map[string]int{workerOne: 30},
	})

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRecordTimeRejectsNegativeMinutes(t *testing.T) {
	s := newTestServer()
	order := s.createOrder(t)

	w := s.do(t, http.MethodPut, "/orders/"+order.ID+"/time", workerOne, "worker", transport.RecordTimeRequest{Minutes: -5})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListAsWorkerIsScopedToCaller(t *testing.T) {
	s := newTestServer()
	s.createOrder(t)

	w := s.do(t, http.MethodGet, "/orders?workerId="+workerTwo, workerOne, "worker", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if s.store.last.WorkerID != workerOne {
		t.Fatalf("expected filter scoped to caller, got %q", s.store.last.WorkerID)
	}
}

func TestListReportsAppliedLimit(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodGet, "/orders", managerID, "manager", nil)

	var resp transport.OrderListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v (%s)", err, w.Body.String())
	}
	if resp.Limit != domain.DefaultListLimit || s.store.last.Limit != domain.DefaultListLimit {
		t.Fatalf("expected limit %d, got response %d store %d", domain.DefaultListLimit, resp.Limit, s.store.last.Limit)
	}
}

func TestGetOrderVisibility(t *testing.T) {
	s := newTestServer()
	order := s.createOrder(t)
	path := "/orders/" + order.ID

	cases := map[string]struct {
		user string
		role string
		code int
	}{
		"manager":       {managerID, "manager", http.StatusOK},
		"admin":         {outsider, "admin", http.StatusOK},
		"listed worker": {workerOne, "worker", http.StatusOK},
		"other worker":  {outsider, "worker", http.StatusForbidden},
		"other manager": {outsider, "manager", http.StatusForbidden},
	}
	for name, tc := range cases {
		if w := s.do(t, http.MethodGet, path, tc.user, tc.role, nil); w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d (%s)", name, tc.code, w.Code, w.Body.String())
		}
		if w := s.do(t, http.MethodGet, path+"/time-entries", tc.user, tc.role, nil); w.Code != tc.code {
			t.Fatalf("%s time entries: expected %d, got %d", name, tc.code, w.Code)
		}
	}

	w := s.do(t, http.MethodGet, path, outsider, "worker", nil)
	if code := decodeError(t, w).Code; code != "not_assigned" {
		t.Fatalf("expected not_assigned code, got %q", code)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodGet, "/orders?status=archived", managerID, "manager", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUnauthenticatedRequest(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodPost, "/orders/x/accept", "", "", nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
