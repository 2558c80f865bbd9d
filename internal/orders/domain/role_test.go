package domain

import (
	"testing"

	"workorders_backend/platform/apperr"
)

func TestRoleFromClaimsPicksMostPrivileged(t *testing.T) {
	cases := []struct {
		claims []string
		want   Role
	}{
		{nil, RoleWorker},
		{[]string{"user"}, RoleWorker},
		{[]string{"worker", "Manager"}, RoleManager},
		{[]string{"manager", "admin", "worker"}, RoleAdmin},
	}
	for _, tc := range cases {
		if got := RoleFromClaims(tc.claims); got != tc.want {
			t.Fatalf("claims %v: expected %s, got %s", tc.claims, tc.want, got)
		}
	}
}

func TestAuthorizeMatrix(t *testing.T) {
	order := &Order{ID: "o1", ManagerID: "m1"}
	workers := []WorkerAssignment{
		{UserID: "w1", Status: WorkerAccepted},
		{UserID: "lead", Status: WorkerAccepted, IsTeamLead: true},
	}

	cases := []struct {
		name    string
		action  Action
		actor   Actor
		allowed bool
	}{
		{"admin completes", ActionComplete, Actor{ID: "x", Role: RoleAdmin}, true},
		{"order manager completes", ActionComplete, Actor{ID: "m1", Role: RoleManager}, true},
		{"other manager cannot complete", ActionComplete, Actor{ID: "m2", Role: RoleManager}, false},
		{"team lead completes", ActionComplete, Actor{ID: "lead", Role: RoleWorker}, true},
		{"plain worker cannot complete", ActionComplete, Actor{ID: "w1", Role: RoleWorker}, false},
		{"stranger cannot reopen", ActionReopen, Actor{ID: "nobody", Role: RoleWorker}, false},
		{"team lead reopens", ActionReopen, Actor{ID: "lead", Role: RoleWorker}, true},
		{"team lead finalizes", ActionFinalizeTeam, Actor{ID: "lead", Role: RoleWorker}, true},
		{"admin cannot finalize for the team", ActionFinalizeTeam, Actor{ID: "x", Role: RoleAdmin}, false},
		{"manager reassigns", ActionReassign, Actor{ID: "m1", Role: RoleManager}, true},
		{"team lead cannot reassign", ActionReassign, Actor{ID: "lead", Role: RoleWorker}, false},
		{"unknown action", Action("explode"), Actor{ID: "x", Role: RoleAdmin}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.action, tc.actor, order, workers)
			if tc.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tc.allowed && !apperr.Is(err, apperr.KindForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestAuthorizeManagerWithoutRecordedManager(t *testing.T) {
	err := Authorize(ActionComplete, Actor{ID: "m7", Role: RoleManager}, &Order{ID: "o1"}, nil)
	if err != nil {
		t.Fatalf("expected any manager to be allowed when none is recorded, got %v", err)
	}
}

func TestNormalizeTeamLeadKeepsFirstFlag(t *testing.T) {
	workers := NormalizeTeamLead([]WorkerAssignment{
		{UserID: "a"},
		{UserID: "b", IsTeamLead: true},
		{UserID: "c", IsTeamLead: true},
	})
	lead := TeamLead(workers)
	if lead == nil || lead.UserID != "b" {
		t.Fatalf("expected b to lead, got %+v", lead)
	}
	if workers[2].IsTeamLead {
		t.Fatal("expected second flag to be cleared")
	}
}

func TestAuthorizeView(t *testing.T) {
	order := &Order{ID: "o1", ManagerID: "m1"}
	workers := []WorkerAssignment{
		{UserID: "w1", Status: WorkerRejected},
	}

	for _, actor := range []Actor{
		{ID: "x", Role: RoleAdmin},
		{ID: "m1", Role: RoleManager},
		{ID: "w1", Role: RoleWorker},
	} {
		if err := Authorize(ActionView, actor, order, workers); err != nil {
			t.Fatalf("%s: expected allowed, got %v", actor.ID, err)
		}
	}

	if err := Authorize(ActionView, Actor{ID: "w2", Role: RoleWorker}, order, workers); !apperr.Is(err, apperr.KindNotAssigned) {
		t.Fatalf("expected not assigned for stranger, got %v", err)
	}
	if err := Authorize(ActionView, Actor{ID: "m2", Role: RoleManager}, order, workers); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for other manager, got %v", err)
	}
}
