package domain

import (
	"strings"

	"workorders_backend/platform/apperr"
)

// Role is the closed set of actor roles the workflow understands.
type Role string

const (
	RoleWorker  Role = "worker"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

var roleRank = map[Role]int{
	RoleWorker:  1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// ParseRole maps a role claim onto the enum.
func ParseRole(value string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	_, ok := roleRank[r]
	return r, ok
}

// RoleFromClaims picks the most privileged known role, defaulting to worker.
func RoleFromClaims(claims []string) Role {
	best := RoleWorker
	for _, c := range claims {
		r, ok := ParseRole(c)
		if ok && roleRank[r] > roleRank[best] {
			best = r
		}
	}
	return best
}

// Actor is whoever is invoking an operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// Action is a privileged operation guarded by Authorize.
type Action string

const (
	ActionView         Action = "view"
	ActionCreate       Action = "create"
	ActionReassign     Action = "reassign"
	ActionComplete     Action = "complete"
	ActionReopen       Action = "reopen"
	ActionFinalizeTeam Action = "finalize_team"
)

const (
	msgOnlyTeamLead     = "only the team lead can finalize the team's time"
	msgCompletionDenied = "only an admin, the order's manager or the team lead can do this"
	msgManagementDenied = "only an admin or the order's manager can do this"
	msgNotOnOrder       = "you are not assigned to this order"
	msgUnknownAction    = "unknown action"
)

// Authorize decides whether actor may perform action on order. workers is
// the order's canonical assignment list.
//
// Finalizing the team's time is reserved to the flagged team lead. Completing
// and reopening accept an admin, the order's manager, or the team lead.
// Creating and restaffing accept an admin or the order's manager. Reading
// also admits any worker on the list.
func Authorize(action Action, actor Actor, order *Order, workers []WorkerAssignment) error {
	switch action {
	case ActionView:
		if isManagerOf(actor, order) || FindWorker(workers, actor.ID) >= 0 {
			return nil
		}
		if actor.Role == RoleManager {
			return apperr.Forbidden(msgManagementDenied).WithOp(string(action))
		}
		return apperr.NotAssigned(msgNotOnOrder).WithOp(string(action))
	case ActionFinalizeTeam:
		if IsTeamLead(workers, actor.ID) {
			return nil
		}
		return apperr.Forbidden(msgOnlyTeamLead).WithOp(string(action))
	case ActionComplete, ActionReopen:
		if isManagerOf(actor, order) || IsTeamLead(workers, actor.ID) {
			return nil
		}
		return apperr.Forbidden(msgCompletionDenied).WithOp(string(action))
	case ActionCreate, ActionReassign:
		if isManagerOf(actor, order) {
			return nil
		}
		return apperr.Forbidden(msgManagementDenied).WithOp(string(action))
	default:
		return apperr.Forbidden(msgUnknownAction).WithOp(string(action))
	}
}

// isManagerOf is true for admins, and for managers when the order has no
// manager recorded or records this actor.
func isManagerOf(actor Actor, order *Order) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleManager:
		return order == nil || order.ManagerID == "" || order.ManagerID == actor.ID
	}
	return false
}
