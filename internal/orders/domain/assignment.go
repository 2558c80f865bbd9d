package domain

import "time"

// UnknownWorkerName is used when a legacy record carries an id without a name.
const UnknownWorkerName = "Unknown"

// WorkerAssignment is one worker's relationship to one order.
type WorkerAssignment struct {
	UserID          string       `json:"userId"`
	Name            string       `json:"name"`
	Status          WorkerStatus `json:"status"`
	IsTeamLead      bool         `json:"isTeamLead,omitempty"`
	Notify          *bool        `json:"notify,omitempty"`
	TimeSpent       *int         `json:"timeSpent,omitempty"`
	TimeNotes       string       `json:"timeNotes,omitempty"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
	RespondedAt     *time.Time   `json:"respondedAt,omitempty"`
}

// WantsNotifications reports whether the worker has not opted out of messaging.
func (w WorkerAssignment) WantsNotifications() bool {
	return w.Notify == nil || *w.Notify
}

// Minutes returns the recorded time, or zero when none was recorded.
func (w WorkerAssignment) Minutes() int {
	if w.TimeSpent == nil {
		return 0
	}
	return *w.TimeSpent
}

// FindWorker returns the index of userID in workers, or -1.
func FindWorker(workers []WorkerAssignment, userID string) int {
	for i := range workers {
		if workers[i].UserID == userID {
			return i
		}
	}
	return -1
}

// TeamLead returns the flagged team lead, or nil when nobody is flagged.
func TeamLead(workers []WorkerAssignment) *WorkerAssignment {
	for i := range workers {
		if workers[i].IsTeamLead {
			return &workers[i]
		}
	}
	return nil
}

// IsTeamLead reports whether userID is the flagged team lead.
func IsTeamLead(workers []WorkerAssignment, userID string) bool {
	lead := TeamLead(workers)
	return lead != nil && userID != "" && lead.UserID == userID
}

// NormalizeTeamLead keeps the first team-lead flag and clears any later ones,
// so at most one worker leads the team.
func NormalizeTeamLead(workers []WorkerAssignment) []WorkerAssignment {
	seen := false
	for i := range workers {
		if !workers[i].IsTeamLead {
			continue
		}
		if seen {
			workers[i].IsTeamLead = false
			continue
		}
		seen = true
	}
	return workers
}

// TotalMinutes sums the recorded time of every worker.
func TotalMinutes(workers []WorkerAssignment) int {
	total := 0
	for _, w := range workers {
		total += w.Minutes()
	}
	return total
}

// CloneWorkers returns a deep copy so callers can mutate without aliasing
// the order's stored list.
func CloneWorkers(workers []WorkerAssignment) []WorkerAssignment {
	if workers == nil {
		return nil
	}
	out := make([]WorkerAssignment, len(workers))
	for i, w := range workers {
		if w.Notify != nil {
			v := *w.Notify
			w.Notify = &v
		}
		if w.TimeSpent != nil {
			v := *w.TimeSpent
			w.TimeSpent = &v
		}
		if w.RespondedAt != nil {
			v := *w.RespondedAt
			w.RespondedAt = &v
		}
		out[i] = w
	}
	return out
}
