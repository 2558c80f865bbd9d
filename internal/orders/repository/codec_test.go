package repository

import (
	"testing"

	"workorders_backend/internal/orders/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAssignmentColumnsKeepLegacyShape(t *testing.T) {
	raw := domain.RawAssignment{
		AssignedTo:     domain.ScalarValue("w1"),
		AssignedToName: domain.ScalarValue("Wes"),
	}

	users, assignedTo, assignedToName, err := encodeAssignment(raw)
	if err != nil {
		t.Fatalf("encodeAssignment returned error: %v", err)
	}
	if users != nil {
		t.Fatalf("expected NULL users column, got %s", users)
	}

	decoded, err := decodeAssignment(users, assignedTo, assignedToName)
	if err != nil {
		t.Fatalf("decodeAssignment returned error: %v", err)
	}
	shape := domain.Classify(decoded)
	if shape.Kind() != domain.ShapeSingle {
		t.Fatalf("expected single shape after reload, got %s", shape.Kind())
	}
	if lead := domain.TeamLead(shape.Canonical()); lead == nil || lead.Name != "Wes" {
		t.Fatalf("expected Wes as implicit lead, got %+v", shape.Canonical())
	}
}

func TestAssignmentColumnsKeepEmptyStructuredList(t *testing.T) {
	raw := domain.RawAssignment{
		Users:      []domain.WorkerAssignment{},
		AssignedTo: domain.ListValue("w1"),
	}

	users, assignedTo, assignedToName, err := encodeAssignment(raw)
	if err != nil {
		t.Fatalf("encodeAssignment returned error: %v", err)
	}
	decoded, err := decodeAssignment(users, assignedTo, assignedToName)
	if err != nil {
		t.Fatalf("decodeAssignment returned error: %v", err)
	}
	if decoded.Users == nil {
		t.Fatal("expected an explicit empty list to survive")
	}
	if got := domain.Classify(decoded).Kind(); got != domain.ShapeStructured {
		t.Fatalf("expected structured shape, got %s", got)
	}
}

func TestDecodeAssignmentRejectsObjects(t *testing.T) {
	if _, err := decodeAssignment(nil, []byte(`{"id":"w1"}`), nil); err == nil {
		t.Fatal("expected error for object-shaped assignedTo")
	}
}

func TestParseLegacyValue(t *testing.T) {
	scalar := parseLegacyValue("w1")
	if !scalar.Scalar || scalar.At(0) != "w1" {
		t.Fatalf("unexpected scalar: %+v", scalar)
	}

	list := parseLegacyValue(primitive.A{"w1", 7, "w2"})
	if list.Scalar || len(list.Values) != 2 || list.At(1) != "w2" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if !parseLegacyValue(nil).IsZero() {
		t.Fatal("expected nil to be absent")
	}
}

func TestDocumentRoundTripKeepsNilUsers(t *testing.T) {
	order := &domain.Order{ID: "o1", Title: "Paint", Status: domain.OrderAssigned}
	order.Assignment.AssignedTo = domain.ListValue("w1", "w2")

	doc := toDocument(order)
	if doc.AssignedUsers != nil {
		t.Fatal("expected no assignedUsers field for legacy orders")
	}
	back := fromDocument(doc)
	if back.Assignment.Users != nil {
		t.Fatal("expected nil users after reload")
	}
	if ids := back.WorkerIDs(); len(ids) != 2 || ids[1] != "w2" {
		t.Fatalf("unexpected workers: %v", ids)
	}
}

func TestParseOrderChange(t *testing.T) {
	change, ok := parseOrderChange(`{"orderId":"o1","revision":4}`)
	if !ok || change.OrderID != "o1" || change.Revision != 4 {
		t.Fatalf("unexpected change: %+v %v", change, ok)
	}
	if _, ok := parseOrderChange(`not json`); ok {
		t.Fatal("expected malformed payload to be skipped")
	}
}
