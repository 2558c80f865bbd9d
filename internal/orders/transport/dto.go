// Package transport holds the request and response types of the orders API.
package transport

import (
	"time"

	"workorders_backend/internal/orders/domain"
)

// WorkerRequest names a worker to put on an order.
type WorkerRequest struct {
	UserID     string `json:"userId" validate:"required,max=100"`
	Name       string `json:"name" validate:"max=200"`
	IsTeamLead bool   `json:"isTeamLead"`
	Notify     *bool  `json:"notify"`
}

type CreateOrderRequest struct {
	Title                string          `json:"title" validate:"required,min=1,max=200"`
	Description          string          `json:"description" validate:"max=5000"`
	Category             string          `json:"category" validate:"max=100"`
	Priority             domain.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	ClientName           string          `json:"clientName" validate:"max=200"`
	ClientID             *string         `json:"clientId" validate:"omitempty,max=100"`
	ProjectName          string          `json:"projectName" validate:"max=200"`
	ProjectID            *string         `json:"projectId" validate:"omitempty,max=100"`
	ScheduledStart       *time.Time      `json:"scheduledStart"`
	ScheduledEnd         *time.Time      `json:"scheduledEnd"`
	ConfirmationDeadline *time.Time      `json:"confirmationDeadline"`
	Workers              []WorkerRequest `json:"workers" validate:"max=50,dive"`
}

type RejectOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

type ReassignWorkersRequest struct {
	Workers []WorkerRequest `json:"workers" validate:"required,min=1,max=50,dive"`
}

type RecordTimeRequest struct {
	Minutes int    `json:"minutes" validate:"min=0,max=100000"`
	Notes   string `json:"notes" validate:"max=2000"`
}

type FinalizeRequest struct {
	Times map[string]int    `json:"times" validate:"required,min=1,dive,keys,required,endkeys,min=0,max=100000"`
	Notes map[string]string `json:"notes" validate:"omitempty,dive,max=2000"`
}

type ListOrdersRequest struct {
	Status    string `form:"status" validate:"omitempty,oneof=pending assigned accepted in-progress rejected completed"`
	WorkerID  string `form:"workerId" validate:"max=100"`
	ManagerID string `form:"managerId" validate:"max=100"`
	Mine      bool   `form:"mine"`
	Limit     int    `form:"limit" validate:"min=0,max=200"`
	Offset    int    `form:"offset" validate:"min=0"`
}

type WorkerResponse struct {
	UserID          string     `json:"userId"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	IsTeamLead      bool       `json:"isTeamLead"`
	Notify          bool       `json:"notify"`
	TimeSpent       *int       `json:"timeSpent,omitempty"`
	TimeNotes       string     `json:"timeNotes,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	RespondedAt     *time.Time `json:"respondedAt,omitempty"`
}

type OrderResponse struct {
	ID                   string           `json:"id"`
	Title                string           `json:"title"`
	Description          string           `json:"description"`
	Category             string           `json:"category"`
	Priority             string           `json:"priority"`
	ClientName           string           `json:"clientName"`
	ClientID             *string          `json:"clientId,omitempty"`
	ProjectName          string           `json:"projectName"`
	ProjectID            *string          `json:"projectId,omitempty"`
	ScheduledStart       *time.Time       `json:"scheduledStart,omitempty"`
	ScheduledEnd         *time.Time       `json:"scheduledEnd,omitempty"`
	ConfirmationDeadline *time.Time       `json:"confirmationDeadline,omitempty"`
	Status               string           `json:"status"`
	RejectionReason      string           `json:"rejectionReason,omitempty"`
	TotalTimeSpent       *int             `json:"totalTimeSpent,omitempty"`
	ManagerID            string           `json:"managerId,omitempty"`
	ManagerName          string           `json:"managerName,omitempty"`
	AssignedUsers        []WorkerResponse `json:"assignedUsers"`
	TeamLeadID           string           `json:"teamLeadId,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
	ReopenedAt           *time.Time       `json:"reopenedAt,omitempty"`
	ReopenedBy           string           `json:"reopenedBy,omitempty"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
	CompletedBy          string           `json:"completedBy,omitempty"`
	Revision             int64            `json:"revision"`
}

type OrderListResponse struct {
	Items  []OrderResponse `json:"items"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type TimeEntryResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	OrderID         string    `json:"orderId"`
	OrderTitle      string    `json:"orderTitle"`
	DurationSeconds int64     `json:"durationSeconds"`
	Note            string    `json:"note,omitempty"`
	FromOrder       bool      `json:"fromOrder"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ToOrderResponse renders an order with its canonical assignment list, so
// clients never see the legacy shapes.
func ToOrderResponse(o *domain.Order) OrderResponse {
	workers := o.Workers()
	resp := OrderResponse{
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
		AssignedUsers:        make([]WorkerResponse, 0, len(workers)),
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		ReopenedAt:           o.ReopenedAt,
		ReopenedBy:           o.ReopenedBy,
		CompletedAt:          o.CompletedAt,
		CompletedBy:          o.CompletedBy,
		Revision:             o.Revision,
	}
	for _, w := range workers {
		resp.AssignedUsers = append(resp.AssignedUsers, WorkerResponse{
			UserID:          w.UserID,
			Name:            w.Name,
			Status:          string(w.Status),
			IsTeamLead:      w.IsTeamLead,
			Notify:          w.WantsNotifications(),
			TimeSpent:       w.TimeSpent,
			TimeNotes:       w.TimeNotes,
			RejectionReason: w.RejectionReason,
			RespondedAt:     w.RespondedAt,
		})
	}
	if lead := domain.TeamLead(workers); lead != nil {
		resp.TeamLeadID = lead.UserID
	}
	return resp
}

func ToTimeEntryResponse(e domain.TimeLedgerEntry) TimeEntryResponse {
	return TimeEntryResponse{
		ID:              e.ID,
		UserID:          e.UserID,
		UserName:        e.UserName,
		OrderID:         e.OrderID,
		OrderTitle:      e.OrderTitle,
		DurationSeconds: e.DurationSeconds,
		Note:            e.Note,
		FromOrder:       e.FromOrder(),
		CreatedAt:       e.CreatedAt,
	}
}
