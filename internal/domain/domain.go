package domain

// TaskStatus is the lifecycle state of an invitation task.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskApproved TaskStatus = "approved"
	TaskRejected TaskStatus = "rejected"
)

// Valid reports whether s is one of the three defined states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskApproved, TaskRejected:
		return true
	}
	return false
}

// Terminal reports whether s is approved or rejected.
func (s TaskStatus) Terminal() bool {
	return s == TaskApproved || s == TaskRejected
}

type Event struct {
	ID          int64  `json:"event_id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Donor struct {
	ID               int64   `json:"donor_id"`
	FirstName        string  `json:"first_name"`
	NickName         string  `json:"nick_name"`
	LastName         string  `json:"last_name"`
	PMM              string  `json:"pmm"`
	OrganizationName string  `json:"organization_name"`
	City             string  `json:"city"`
	TotalDonations   float64 `json:"total_donations"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

type Task struct {
	ID        int64      `json:"task_id"`
	EventID   int64      `json:"event_id"`
	DonorID   int64      `json:"donor_id"`
	Status    TaskStatus `json:"status" enum:"pending,approved,rejected"`
	Reason    *string    `json:"reason"`
	CreatedAt string     `json:"created_at" format:"date-time"`
	UpdatedAt string     `json:"updated_at" format:"date-time"`
}

// TaskWithDonor is a task row denormalized with its donor's descriptive fields.
type TaskWithDonor struct {
	Task
	FirstName        string  `json:"first_name"`
	NickName         string  `json:"nick_name"`
	LastName         string  `json:"last_name"`
	PMM              string  `json:"pmm"`
	OrganizationName string  `json:"organization_name"`
	City             string  `json:"city"`
	TotalDonations   float64 `json:"total_donations"`
}

type PMMSummary struct {
	PMM            string `json:"pmm"`
	PendingCount   int    `json:"pending_count"`
	CompletedCount int    `json:"completed_count"`
	ApprovedCount  int    `json:"approved_count"`
	RejectedCount  int    `json:"rejected_count"`
}

type Activity struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
