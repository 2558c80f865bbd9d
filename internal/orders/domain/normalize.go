package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StringOrList holds a legacy field that was stored either as a single
// string or as an array of strings.
type StringOrList struct {
	Values []string
	Scalar bool
}

// ScalarValue builds a single-string legacy value.
func ScalarValue(v string) StringOrList {
	if v == "" {
		return StringOrList{}
	}
	return StringOrList{Values: []string{v}, Scalar: true}
}

// ListValue builds an array legacy value.
func ListValue(values ...string) StringOrList {
	return StringOrList{Values: values}
}

// IsZero reports whether the field is absent.
func (s StringOrList) IsZero() bool {
	return len(s.Values) == 0
}

// At returns the value at index i, or "" when out of range.
func (s StringOrList) At(i int) string {
	if i < 0 || i >= len(s.Values) {
		return ""
	}
	return s.Values[i]
}

// MarshalJSON writes the original shape back out.
func (s StringOrList) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	if s.Scalar {
		return json.Marshal(s.Values[0])
	}
	return json.Marshal(s.Values)
}

// UnmarshalJSON accepts null, a string, or an array of strings.
func (s *StringOrList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = StringOrList{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = ScalarValue(v)
		return nil
	case '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*s = ListValue(values...)
		return nil
	default:
		return fmt.Errorf("legacy assignment field must be a string or array, got %s", data)
	}
}

// RawAssignment is the assignment data as it is stored on an order. Users is
// the structured list and is nil when the document never had one; the other
// two fields carry the historical assignedTo/assignedToName shapes.
type RawAssignment struct {
	Users          []WorkerAssignment
	AssignedTo     StringOrList
	AssignedToName StringOrList
}

// LegacyName looks userID up in the legacy fields only.
func (r RawAssignment) LegacyName(userID string) (string, bool) {
	if userID == "" {
		return "", false
	}
	for i, id := range r.AssignedTo.Values {
		if id != userID {
			continue
		}
		name := r.AssignedToName.At(i)
		if name == "" {
			name = UnknownWorkerName
		}
		return name, true
	}
	return "", false
}

// ShapeKind names the variants of AssignmentShape.
type ShapeKind string

const (
	ShapeStructured ShapeKind = "structured"
	ShapeParallel   ShapeKind = "parallel"
	ShapeSingle     ShapeKind = "single"
	ShapeEmpty      ShapeKind = "empty"
)

// AssignmentShape is the closed set of representations an order's
// assignment data can take. Classify picks one; Canonical turns it into the
// list every business rule works on.
type AssignmentShape interface {
	Kind() ShapeKind
	Canonical() []WorkerAssignment
	sealed()
}

// StructuredShape is an explicit assignedUsers list.
type StructuredShape struct {
	Users []WorkerAssignment
}

// ParallelShape is a pair of index-aligned id and name arrays.
type ParallelShape struct {
	IDs   []string
	Names []string
}

// SingleShape is a lone assignee stored as scalars.
type SingleShape struct {
	ID   string
	Name string
}

// EmptyShape means the order has no assignment data.
type EmptyShape struct{}

func (StructuredShape) Kind() ShapeKind { return ShapeStructured }
func (ParallelShape) Kind() ShapeKind   { return ShapeParallel }
func (SingleShape) Kind() ShapeKind     { return ShapeSingle }
func (EmptyShape) Kind() ShapeKind      { return ShapeEmpty }

func (StructuredShape) sealed() {}
func (ParallelShape) sealed()   {}
func (SingleShape) sealed()     {}
func (EmptyShape) sealed()      {}

// Canonical returns the structured list as stored.
func (s StructuredShape) Canonical() []WorkerAssignment {
	return CloneWorkers(s.Users)
}

// Canonical zips ids with names by index. Missing names become "Unknown"
// and repeated ids keep their first occurrence.
func (s ParallelShape) Canonical() []WorkerAssignment {
	out := make([]WorkerAssignment, 0, len(s.IDs))
	seen := make(map[string]bool, len(s.IDs))
	for i, id := range s.IDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		name := UnknownWorkerName
		if i < len(s.Names) && s.Names[i] != "" {
			name = s.Names[i]
		}
		out = append(out, WorkerAssignment{UserID: id, Name: name, Status: WorkerPending})
	}
	return out
}

// Canonical returns the single assignee as the team lead; legacy
// single-assignee orders had no notion of a non-lead worker.
func (s SingleShape) Canonical() []WorkerAssignment {
	name := s.Name
	if name == "" {
		name = UnknownWorkerName
	}
	return []WorkerAssignment{{UserID: s.ID, Name: name, Status: WorkerPending, IsTeamLead: true}}
}

// Canonical returns an empty list.
func (EmptyShape) Canonical() []WorkerAssignment {
	return []WorkerAssignment{}
}

// Classify selects the representation of raw. A structured list takes
// precedence over every legacy shape, even when it is empty.
func Classify(raw RawAssignment) AssignmentShape {
	if raw.Users != nil {
		return StructuredShape{Users: raw.Users}
	}
	if raw.AssignedTo.IsZero() {
		return EmptyShape{}
	}
	if raw.AssignedTo.Scalar {
		if raw.AssignedTo.Values[0] == "" {
			return EmptyShape{}
		}
		return SingleShape{ID: raw.AssignedTo.Values[0], Name: raw.AssignedToName.At(0)}
	}
	return ParallelShape{IDs: raw.AssignedTo.Values, Names: raw.AssignedToName.Values}
}

// Normalize returns the canonical assignment list for raw.
func Normalize(raw RawAssignment) []WorkerAssignment {
	return Classify(raw).Canonical()
}
