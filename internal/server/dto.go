package server

import (
	"donortrack/internal/domain"
	"donortrack/internal/store"
)

// Request payloads

type CreateEventRequest struct {
	Name        string  `json:"name"`
	Location    *string `json:"location,omitempty"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (r CreateEventRequest) input() store.EventInput {
	return store.EventInput{
		Name:        r.Name,
		Location:    deref(r.Location),
		Date:        deref(r.Date),
		Description: deref(r.Description),
	}
}

type DonorRequest struct {
	FirstName        *string  `json:"first_name,omitempty"`
	NickName         *string  `json:"nick_name,omitempty"`
	LastName         *string  `json:"last_name,omitempty"`
	PMM              string   `json:"pmm"`
	OrganizationName *string  `json:"organization_name,omitempty"`
	City             *string  `json:"city,omitempty"`
	TotalDonations   *float64 `json:"total_donations,omitempty"`
}

func (r DonorRequest) input() store.DonorInput {
	in := store.DonorInput{
		FirstName:        deref(r.FirstName),
		NickName:         deref(r.NickName),
		LastName:         deref(r.LastName),
		PMM:              r.PMM,
		OrganizationName: deref(r.OrganizationName),
		City:             deref(r.City),
	}
	if r.TotalDonations != nil {
		in.TotalDonations = *r.TotalDonations
	}
	return in
}

type CreateTasksRequest struct {
	EventID  int64   `json:"event_id"`
	DonorIDs []int64 `json:"donor_ids"`
}

type UpdateTaskStatusRequest struct {
	TaskID int64   `json:"task_id"`
	Status string  `json:"status,omitempty"`
	Reason *string `json:"reason,omitempty"`
}

type SetupEventRequest struct {
	Event  CreateEventRequest `json:"event"`
	Cities []string           `json:"cities,omitempty"`
	Limit  int                `json:"limit,omitempty" minimum:"0"`
}

// SetupTasksRequest carries an upstream table the caller already fetched.
type SetupTasksRequest struct {
	Headers []string `json:"headers,omitempty"`
	Data    [][]any  `json:"data"`
}

type LoginRequest struct {
	Username string `json:"username"`
}

// Response payloads

type IDResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type IDsResponse struct {
	IDs     []int64 `json:"ids"`
	Message string  `json:"message"`
}

type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at" format:"date-time"`
	Roles     []string `json:"roles"`
}

type EventSummaryResponse struct {
	EventID  int64 `json:"event_id"`
	Pending  int   `json:"pending"`
	Approved int   `json:"approved"`
	Rejected int   `json:"rejected"`
	Total    int   `json:"total"`
}

func eventSummary(eventID int64, counts map[domain.TaskStatus]int) EventSummaryResponse {
	s := EventSummaryResponse{
		EventID:  eventID,
		Pending:  counts[domain.TaskPending],
		Approved: counts[domain.TaskApproved],
		Rejected: counts[domain.TaskRejected],
	}
	s.Total = s.Pending + s.Approved + s.Rejected
	return s
}

type ActivityPage struct {
	Items      []domain.Activity `json:"items"`
	NextCursor int64             `json:"next_cursor"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
