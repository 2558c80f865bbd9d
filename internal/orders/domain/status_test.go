package domain

import "testing"

func workersWith(statuses ...WorkerStatus) []WorkerAssignment {
	out := make([]WorkerAssignment, len(statuses))
	for i, s := range statuses {
		out[i] = WorkerAssignment{UserID: string(rune('a' + i)), Status: s}
	}
	return out
}

func TestDeriveStatusRules(t *testing.T) {
	cases := []struct {
		name     string
		statuses []WorkerStatus
		want     OrderStatus
	}{
		{"empty list", nil, OrderRejected},
		{"single rejected", []WorkerStatus{WorkerRejected}, OrderRejected},
		{"all rejected", []WorkerStatus{WorkerRejected, WorkerRejected, WorkerRejected}, OrderRejected},
		{"single accepted", []WorkerStatus{WorkerAccepted}, OrderInProgress},
		{"all accepted", []WorkerStatus{WorkerAccepted, WorkerAccepted}, OrderInProgress},
		{"accepted and pending", []WorkerStatus{WorkerAccepted, WorkerPending}, OrderAccepted},
		{"accepted and rejected", []WorkerStatus{WorkerAccepted, WorkerRejected}, OrderInProgress},
		{"pending and rejected", []WorkerStatus{WorkerPending, WorkerRejected}, OrderAssigned},
		{"all pending", []WorkerStatus{WorkerPending, WorkerPending}, OrderAssigned},
		{"accepted pending rejected", []WorkerStatus{WorkerAccepted, WorkerPending, WorkerRejected}, OrderAccepted},
		{"completed entries do not force completion", []WorkerStatus{WorkerCompleted, WorkerCompleted}, OrderAssigned},
		{"completed and accepted", []WorkerStatus{WorkerCompleted, WorkerAccepted}, OrderAccepted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(workersWith(tc.statuses...))
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

// TestDeriveStatusIsTotalAndOrderIndependent enumerates every sequence of up
// to four responses and checks the result is a derivable status, stable
// across repeated calls and across every rotation of the list.
func TestDeriveStatusIsTotalAndOrderIndependent(t *testing.T) {
	alphabet := []WorkerStatus{WorkerPending, WorkerAccepted, WorkerRejected}
	derivable := map[OrderStatus]bool{
		OrderAssigned:   true,
		OrderAccepted:   true,
		OrderInProgress: true,
		OrderRejected:   true,
	}

	var walk func(prefix []WorkerStatus, depth int)
	walk = func(prefix []WorkerStatus, depth int) {
		workers := workersWith(prefix...)
		first := DeriveStatus(workers)
		if !derivable[first] {
			t.Fatalf("statuses %v derived non-derivable status %s", prefix, first)
		}
		if again := DeriveStatus(workers); again != first {
			t.Fatalf("statuses %v derived %s then %s", prefix, first, again)
		}
		for shift := 1; shift < len(prefix); shift++ {
			rotated := append(append([]WorkerStatus{}, prefix[shift:]...), prefix[:shift]...)
			if got := DeriveStatus(workersWith(rotated...)); got != first {
				t.Fatalf("rotation %v derived %s, original %v derived %s", rotated, got, prefix, first)
			}
		}
		if depth == 0 {
			return
		}
		for _, s := range alphabet {
			walk(append(append([]WorkerStatus{}, prefix...), s), depth-1)
		}
	}
	walk(nil, 4)
}

func TestDeriveStatusNeverReturnsCompleted(t *testing.T) {
	for _, statuses := range [][]WorkerStatus{
		{WorkerCompleted},
		{WorkerCompleted, WorkerAccepted, WorkerRejected},
		{WorkerCompleted, WorkerPending},
	} {
		if got := DeriveStatus(workersWith(statuses...)); got == OrderCompleted {
			t.Fatalf("statuses %v derived completed", statuses)
		}
	}
}
