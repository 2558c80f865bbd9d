package domain

import (
	"encoding/json"
	"testing"
)

func TestNormalizeStructuredListTakesPrecedence(t *testing.T) {
	raw := RawAssignment{
		Users:          []WorkerAssignment{{UserID: "u1", Name: "Ada", Status: WorkerAccepted}},
		AssignedTo:     ListValue("legacy-1", "legacy-2"),
		AssignedToName: ListValue("Legacy One", "Legacy Two"),
	}

	if kind := Classify(raw).Kind(); kind != ShapeStructured {
		t.Fatalf("expected structured shape, got %s", kind)
	}
	got := Normalize(raw)
	if len(got) != 1 || got[0].UserID != "u1" || got[0].Status != WorkerAccepted {
		t.Fatalf("expected structured list unchanged, got %+v", got)
	}
}

func TestNormalizeEmptyStructuredListStillWins(t *testing.T) {
	raw := RawAssignment{
		Users:      []WorkerAssignment{},
		AssignedTo: ScalarValue("legacy"),
	}
	if got := Normalize(raw); len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestNormalizeParallelArrays(t *testing.T) {
	raw := RawAssignment{
		AssignedTo:     ListValue("w1", "w2", "w3", "w1"),
		AssignedToName: ListValue("Willem", ""),
	}

	got := Normalize(raw)
	if len(got) != 3 {
		t.Fatalf("expected 3 workers after dedupe, got %d", len(got))
	}
	if got[0].Name != "Willem" {
		t.Fatalf("expected first name Willem, got %q", got[0].Name)
	}
	if got[1].Name != UnknownWorkerName || got[2].Name != UnknownWorkerName {
		t.Fatalf("expected missing names to become %q, got %q and %q", UnknownWorkerName, got[1].Name, got[2].Name)
	}
	for _, w := range got {
		if w.Status != WorkerPending {
			t.Fatalf("expected pending status, got %s", w.Status)
		}
		if w.IsTeamLead {
			t.Fatalf("parallel arrays must not flag a team lead, got %+v", w)
		}
	}
}

func TestNormalizeSingleAssigneeIsTeamLead(t *testing.T) {
	got := Normalize(RawAssignment{AssignedTo: ScalarValue("w9"), AssignedToName: ScalarValue("Noor")})
	if len(got) != 1 {
		t.Fatalf("expected one worker, got %d", len(got))
	}
	if !got[0].IsTeamLead || got[0].Name != "Noor" || got[0].Status != WorkerPending {
		t.Fatalf("unexpected single assignee: %+v", got[0])
	}
}

func TestNormalizeNoAssignment(t *testing.T) {
	got := Normalize(RawAssignment{})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestNormalizeDoesNotAliasStoredList(t *testing.T) {
	raw := RawAssignment{Users: []WorkerAssignment{{UserID: "u1", Status: WorkerPending}}}
	got := Normalize(raw)
	got[0].Status = WorkerRejected
	if raw.Users[0].Status != WorkerPending {
		t.Fatal("mutating the canonical list changed the stored list")
	}
}

func TestStringOrListJSONShapes(t *testing.T) {
	var doc struct {
		AssignedTo     StringOrList `json:"assignedTo"`
		AssignedToName StringOrList `json:"assignedToName"`
	}

	if err := json.Unmarshal([]byte(`{"assignedTo":"w1","assignedToName":"Ada"}`), &doc); err != nil {
		t.Fatalf("scalar decode failed: %v", err)
	}
	if !doc.AssignedTo.Scalar || doc.AssignedTo.At(0) != "w1" {
		t.Fatalf("expected scalar w1, got %+v", doc.AssignedTo)
	}

	var arrayDoc struct {
		AssignedTo     StringOrList `json:"assignedTo"`
		AssignedToName StringOrList `json:"assignedToName"`
	}
	if err := json.Unmarshal([]byte(`{"assignedTo":["w1","w2"],"assignedToName":null}`), &arrayDoc); err != nil {
		t.Fatalf("array decode failed: %v", err)
	}
	if arrayDoc.AssignedTo.Scalar || len(arrayDoc.AssignedTo.Values) != 2 || !arrayDoc.AssignedToName.IsZero() {
		t.Fatalf("unexpected array decode: %+v / %+v", arrayDoc.AssignedTo, arrayDoc.AssignedToName)
	}

	var badDoc struct {
		AssignedTo StringOrList `json:"assignedTo"`
	}
	if err := json.Unmarshal([]byte(`{"assignedTo":42}`), &badDoc); err == nil {
		t.Fatal("expected numeric legacy value to be rejected")
	}

	out, err := json.Marshal(ScalarValue("w1"))
	if err != nil || string(out) != `"w1"` {
		t.Fatalf("expected scalar to marshal as string, got %s (%v)", out, err)
	}
}

func TestLegacyNameLookup(t *testing.T) {
	raw := RawAssignment{
		Users:          []WorkerAssignment{},
		AssignedTo:     ListValue("w1", "w2"),
		AssignedToName: ListValue("Ada"),
	}
	if name, ok := raw.LegacyName("w1"); !ok || name != "Ada" {
		t.Fatalf("expected Ada, got %q %v", name, ok)
	}
	if name, ok := raw.LegacyName("w2"); !ok || name != UnknownWorkerName {
		t.Fatalf("expected %q, got %q %v", UnknownWorkerName, name, ok)
	}
	if _, ok := raw.LegacyName("w3"); ok {
		t.Fatal("expected w3 to be absent")
	}
}
