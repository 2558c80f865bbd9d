package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/apperr"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ordersCollection      = "orders"
	timeEntriesCollection = "order_time_entries"
)

type workerDocument struct {
	UserID          string     `bson:"userId"`
	Name            string     `bson:"name"`
	Status          string     `bson:"status"`
	IsTeamLead      bool       `bson:"isTeamLead,omitempty"`
	Notify          *bool      `bson:"notify,omitempty"`
	TimeSpent       *int       `bson:"timeSpent,omitempty"`
	TimeNotes       string     `bson:"timeNotes,omitempty"`
	RejectionReason string     `bson:"rejectionReason,omitempty"`
	RespondedAt     *time.Time `bson:"respondedAt,omitempty"`
}

// orderDocument mirrors how orders are stored in MongoDB. The legacy
// assignedTo/assignedToName fields hold either a string or an array, so they
// are decoded loosely and classified afterwards.
type orderDocument struct {
	ID                   string            `bson:"_id"`
	Title                string            `bson:"title"`
	Description          string            `bson:"description,omitempty"`
	Category             string            `bson:"category,omitempty"`
	Priority             string            `bson:"priority,omitempty"`
	ClientName           string            `bson:"clientName,omitempty"`
	ClientID             *string           `bson:"clientId,omitempty"`
	ProjectName          string            `bson:"projectName,omitempty"`
	ProjectID            *string           `bson:"projectId,omitempty"`
	ScheduledStart       *time.Time        `bson:"scheduledStart,omitempty"`
	ScheduledEnd         *time.Time        `bson:"scheduledEnd,omitempty"`
	ConfirmationDeadline *time.Time        `bson:"confirmationDeadline,omitempty"`
	Status               string            `bson:"status"`
	RejectionReason      string            `bson:"rejectionReason,omitempty"`
	TotalTimeSpent       *int              `bson:"totalTimeSpent,omitempty"`
	ManagerID            string            `bson:"managerId,omitempty"`
	ManagerName          string            `bson:"managerName,omitempty"`
	AssignedUsers        *[]workerDocument `bson:"assignedUsers,omitempty"`
	AssignedTo           interface{}       `bson:"assignedTo,omitempty"`
	AssignedToName       interface{}       `bson:"assignedToName,omitempty"`
	CreatedAt            time.Time         `bson:"createdAt"`
	UpdatedAt            time.Time         `bson:"updatedAt"`
	ReopenedAt           *time.Time        `bson:"reopenedAt,omitempty"`
	ReopenedBy           string            `bson:"reopenedBy,omitempty"`
	CompletedAt          *time.Time        `bson:"completedAt,omitempty"`
	CompletedBy          string            `bson:"completedBy,omitempty"`
	OverdueNotifiedAt    *time.Time        `bson:"overdueNotifiedAt,omitempty"`
	Revision             int64             `bson:"revision"`
}

// MongoStore keeps each order as one document with its assignments embedded.
type MongoStore struct {
	orders *mongo.Collection
}

// NewMongoStore creates a new MongoDB order store.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{orders: db.Collection(ordersCollection)}
}

// EnsureIndexes creates the indexes the queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "managerId", Value: 1}}},
		{Keys: bson.D{{Key: "assignedUsers.userId", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
		{Keys: bson.D{{Key: "confirmationDeadline", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}

// Create inserts a new order.
func (s *MongoStore) Create(ctx context.Context, order *domain.Order) error {
	if _, err := s.orders.InsertOne(ctx, toDocument(order)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("order already exists").WithOp(opCreate)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetByID returns one order or a NotFound error.
func (s *MongoStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDocument
	err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound().WithOp(opGet)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return fromDocument(doc), nil
}

// List returns orders matching filter, newest first.
func (s *MongoStore) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.ManagerID != "" {
		query["managerId"] = filter.ManagerID
	}
	if filter.WorkerID != "" {
		query["$or"] = bson.A{
			bson.M{"assignedUsers.userId": filter.WorkerID},
			bson.M{"assignedUsers": bson.M{"$exists": false}, "assignedTo": filter.WorkerID},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(clampLimit(filter.Limit))).
		SetSkip(int64(filter.Offset))

	return s.find(ctx, query, opts)
}

// Update writes the workflow-owned fields when the stored revision still
// equals expectedRevision, and advances order.Revision.
func (s *MongoStore) Update(ctx context.Context, order *domain.Order, expectedRevision int64) error {
	doc := toDocument(order)
	set := bson.M{
		"status":          doc.Status,
		"rejectionReason": doc.RejectionReason,
		"updatedAt":       doc.UpdatedAt,
		"reopenedBy":      doc.ReopenedBy,
		"completedBy":     doc.CompletedBy,
	}
	unset := bson.M{}
	setOrUnset(set, unset, "totalTimeSpent", doc.TotalTimeSpent, doc.TotalTimeSpent == nil)
	setOrUnset(set, unset, "assignedUsers", doc.AssignedUsers, doc.AssignedUsers == nil)
	setOrUnset(set, unset, "assignedTo", doc.AssignedTo, doc.AssignedTo == nil)
	setOrUnset(set, unset, "assignedToName", doc.AssignedToName, doc.AssignedToName == nil)
	setOrUnset(set, unset, "reopenedAt", doc.ReopenedAt, doc.ReopenedAt == nil)
	setOrUnset(set, unset, "completedAt", doc.CompletedAt, doc.CompletedAt == nil)

	update := bson.M{"$set": set, "$inc": bson.M{"revision": 1}}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := s.orders.UpdateOne(ctx, bson.M{"_id": order.ID, "revision": expectedRevision}, update)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.orders.CountDocuments(ctx, bson.M{"_id": order.ID})
		if err != nil {
			return fmt.Errorf("failed to check order: %w", err)
		}
		if n == 0 {
			return domain.ErrOrderNotFound().WithOp(opUpdate)
		}
		return apperr.Conflict(msgConcurrentUpdate).WithOp(opUpdate)
	}
	order.Revision = expectedRevision + 1
	return nil
}

// ListOverdue returns unanswered orders whose confirmation deadline is before
// now and that have not been announced yet.
func (s *MongoStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	query := bson.M{
		"confirmationDeadline": bson.M{"$lt": now},
		"overdueNotifiedAt":    nil,
		"status":               bson.M{"$in": bson.A{string(domain.OrderPending), string(domain.OrderAssigned)}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "confirmationDeadline", Value: 1}}).
		SetLimit(int64(clampLimit(limit)))
	return s.find(ctx, query, opts)
}

// MarkOverdueNotified stamps the order once; a second stamp returns Conflict.
func (s *MongoStore) MarkOverdueNotified(ctx context.Context, orderID string, at time.Time) error {
	res, err := s.orders.UpdateOne(ctx,
		bson.M{"_id": orderID, "overdueNotifiedAt": nil},
		bson.M{"$set": bson.M{"overdueNotifiedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark order overdue: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Conflict(msgAlreadyNotified).WithOp(opMarkOverdue)
	}
	return nil
}

// Subscribe follows the orders change stream and calls fn for every insert,
// update or replace until ctx is cancelled. Change streams need a replica set.
func (s *MongoStore) Subscribe(ctx context.Context, fn func(domain.OrderChange)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := s.orders.Watch(ctx, pipeline, opts)
	if err != nil {
		return fmt.Errorf("failed to watch orders: %w", err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	for stream.Next(ctx) {
		var evt struct {
			DocumentKey struct {
				ID string `bson:"_id"`
			} `bson:"documentKey"`
			FullDocument struct {
				Revision int64 `bson:"revision"`
			} `bson:"fullDocument"`
		}
		if err := stream.Decode(&evt); err != nil {
			continue
		}
		fn(domain.OrderChange{OrderID: evt.DocumentKey.ID, Revision: evt.FullDocument.Revision})
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("order change stream failed: %w", err)
	}
	return nil
}

func (s *MongoStore) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]domain.Order, error) {
	cur, err := s.orders.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cur.Close(ctx)

	orders := make([]domain.Order, 0)
	for cur.Next(ctx) {
		var doc orderDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, *fromDocument(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func setOrUnset(set, unset bson.M, key string, value interface{}, absent bool) {
	if absent {
		unset[key] = ""
		return
	}
	set[key] = value
}

func toDocument(o *domain.Order) orderDocument {
	doc := orderDocument{
		ID:                   o.ID,
		Title:                o.Title,
		Description:          o.Description,
		Category:             o.Category,
		Priority:             string(o.Priority),
		ClientName:           o.ClientName,
		ClientID:             o.ClientID,
		ProjectName:          o.ProjectName,
		ProjectID:            o.ProjectID,
		ScheduledStart:       o.ScheduledStart,
		ScheduledEnd:         o.ScheduledEnd,
		ConfirmationDeadline: o.ConfirmationDeadline,
		Status:               string(o.Status),
		RejectionReason:      o.RejectionReason,
		TotalTimeSpent:       o.TotalTimeSpent,
		ManagerID:            o.ManagerID,
		ManagerName:          o.ManagerName,
		AssignedTo:           legacyValue(o.Assignment.AssignedTo),
		AssignedToName:       legacyValue(o.Assignment.AssignedToName),
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		ReopenedAt:           o.ReopenedAt,
		ReopenedBy:           o.ReopenedBy,
		CompletedAt:          o.CompletedAt,
		CompletedBy:          o.CompletedBy,
		OverdueNotifiedAt:    o.OverdueNotifiedAt,
		Revision:             o.Revision,
	}
	if o.Assignment.Users != nil {
		workers := make([]workerDocument, 0, len(o.Assignment.Users))
		for _, w := range o.Assignment.Users {
			workers = append(workers, workerDocument{
				UserID:          w.UserID,
				Name:            w.Name,
				Status:          string(w.Status),
				IsTeamLead:      w.IsTeamLead,
				Notify:          w.Notify,
				TimeSpent:       w.TimeSpent,
				TimeNotes:       w.TimeNotes,
				RejectionReason: w.RejectionReason,
				RespondedAt:     w.RespondedAt,
			})
		}
		doc.AssignedUsers = &workers
	}
	return doc
}

func fromDocument(doc orderDocument) *domain.Order {
	o := &domain.Order{
		ID:                   doc.ID,
		Title:                doc.Title,
		Description:          doc.Description,
		Category:             doc.Category,
		Priority:             domain.Priority(doc.Priority),
		ClientName:           doc.ClientName,
		ClientID:             doc.ClientID,
		ProjectName:          doc.ProjectName,
		ProjectID:            doc.ProjectID,
		ScheduledStart:       doc.ScheduledStart,
		ScheduledEnd:         doc.ScheduledEnd,
		ConfirmationDeadline: doc.ConfirmationDeadline,
		Status:               domain.OrderStatus(doc.Status),
		RejectionReason:      doc.RejectionReason,
		TotalTimeSpent:       doc.TotalTimeSpent,
		ManagerID:            doc.ManagerID,
		ManagerName:          doc.ManagerName,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
		ReopenedAt:           doc.ReopenedAt,
		ReopenedBy:           doc.ReopenedBy,
		CompletedAt:          doc.CompletedAt,
		CompletedBy:          doc.CompletedBy,
		OverdueNotifiedAt:    doc.OverdueNotifiedAt,
		Revision:             doc.Revision,
	}
	o.Assignment.AssignedTo = parseLegacyValue(doc.AssignedTo)
	o.Assignment.AssignedToName = parseLegacyValue(doc.AssignedToName)
	if doc.AssignedUsers != nil {
		workers := make([]domain.WorkerAssignment, 0, len(*doc.AssignedUsers))
		for _, w := range *doc.AssignedUsers {
			workers = append(workers, domain.WorkerAssignment{
				UserID:          w.UserID,
				Name:            w.Name,
				Status:          domain.WorkerStatus(w.Status),
				IsTeamLead:      w.IsTeamLead,
				Notify:          w.Notify,
				TimeSpent:       w.TimeSpent,
				TimeNotes:       w.TimeNotes,
				RejectionReason: w.RejectionReason,
				RespondedAt:     w.RespondedAt,
			})
		}
		o.Assignment.Users = workers
	}
	return o
}

// legacyValue converts a legacy field back into the shape it was read in.
func legacyValue(v domain.StringOrList) interface{} {
	if v.IsZero() {
		return nil
	}
	if v.Scalar {
		return v.Values[0]
	}
	out := make(bson.A, 0, len(v.Values))
	for _, s := range v.Values {
		out = append(out, s)
	}
	return out
}

// parseLegacyValue accepts whatever the driver decoded for a legacy field.
// Non-string array elements are dropped.
func parseLegacyValue(v interface{}) domain.StringOrList {
	switch typed := v.(type) {
	case string:
		return domain.ScalarValue(typed)
	case primitive.A:
		return domain.ListValue(stringElements(typed)...)
	case []interface{}:
		return domain.ListValue(stringElements(typed)...)
	case []string:
		return domain.ListValue(typed...)
	default:
		return domain.StringOrList{}
	}
}

func stringElements(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// MongoLedger is the append-only time entry collection.
type MongoLedger struct {
	entries *mongo.Collection
}

// NewMongoLedger creates a new MongoDB time ledger.
func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{entries: db.Collection(timeEntriesCollection)}
}

type timeEntryDocument struct {
	ID              string    `bson:"_id"`
	UserID          string    `bson:"userId"`
	UserName        string    `bson:"userName"`
	OrderID         string    `bson:"orderId"`
	OrderTitle      string    `bson:"orderTitle"`
	DurationSeconds int64     `bson:"durationSeconds"`
	Note            string    `bson:"note,omitempty"`
	Source          string    `bson:"source"`
	FromOrder       bool      `bson:"fromOrder"`
	CreatedAt       time.Time `bson:"createdAt"`
}

// Append inserts entries unordered so one duplicate does not stop the rest.
func (l *MongoLedger) Append(ctx context.Context, entries []domain.TimeLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, timeEntryDocument{
			ID:              e.ID,
			UserID:          e.UserID,
			UserName:        e.UserName,
			OrderID:         e.OrderID,
			OrderTitle:      e.OrderTitle,
			DurationSeconds: e.DurationSeconds,
			Note:            e.Note,
			Source:          string(e.Source),
			FromOrder:       e.FromOrder(),
			CreatedAt:       e.CreatedAt,
		})
	}
	_, err := l.entries.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: failed to append time entries: %w", opLedger, err)
	}
	return nil
}

// ListByOrder returns the entries of an order, oldest first.
func (l *MongoLedger) ListByOrder(ctx context.Context, orderID string) ([]domain.TimeLedgerEntry, error) {
	cur, err := l.entries.Find(ctx, bson.M{"orderId": orderID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer cur.Close(ctx)

	var docs []timeEntryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode time entries: %w", err)
	}
	entries := make([]domain.TimeLedgerEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, domain.TimeLedgerEntry{
			ID:              d.ID,
			UserID:          d.UserID,
			UserName:        d.UserName,
			OrderID:         d.OrderID,
			OrderTitle:      d.OrderTitle,
			DurationSeconds: d.DurationSeconds,
			Note:            d.Note,
			Source:          domain.LedgerSource(d.Source),
			CreatedAt:       d.CreatedAt,
		})
	}
	return entries, nil
}
