package taskdesk

import (
	"strings"
	"time"
)

// User is the authenticated principal as reported by the auth endpoints.
type User struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	PJNumber string `json:"pjNumber,omitempty"`
}

// displayName applies the portal's fallback chain: name, PJ number, role, "User".
func (u *User) displayName() string {
	for _, v := range []string{u.Name, u.PJNumber, u.Role} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return "User"
}

// IsSuperAdmin reports whether the user holds the super-admin role.
func (u *User) IsSuperAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, "superadmin")
}

// Account is a user record managed through /users.
type Account struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PJNumber string `json:"pjNumber"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

// AccountInput carries the writable fields of an account. Empty fields are
// omitted from the request.
type AccountInput struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	PJNumber string `json:"pjNumber,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive *bool  `json:"isActive,omitempty"`
}

type TaskStatus string

const (
	StatusPending      TaskStatus = "Pending"
	StatusAcknowledged TaskStatus = "Acknowledged"
	StatusCompleted    TaskStatus = "Completed"
	StatusOnHold       TaskStatus = "On Hold"
	StatusArchived     TaskStatus = "Archived"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{StatusPending, StatusAcknowledged, StatusCompleted, StatusOnHold, StatusArchived}

// ParseTaskStatus matches s case-insensitively against the known statuses.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s))
	for _, st := range TaskStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
	PriorityUrgent TaskPriority = "Urgent"
)

// UserRef is the compact user shape embedded in tasks.
type UserRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// CategoryRef is the compact category shape embedded in tasks.
type CategoryRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	FileType string `json:"fileType"`
	PublicID string `json:"publicId"`
}

type Task struct {
	ID             string       `json:"_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Status         TaskStatus   `json:"status"`
	Priority       TaskPriority `json:"priority"`
	AssignedTo     []UserRef    `json:"assignedTo"`
	CreatedBy      *UserRef     `json:"createdBy,omitempty"`
	Category       *CategoryRef `json:"category,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	BoardColumn    string       `json:"boardColumn,omitempty"`
	StartDate      *time.Time   `json:"startDate,omitempty"`
	DueDate        *time.Time   `json:"dueDate,omitempty"`
	AcknowledgedAt *time.Time   `json:"acknowledgedAt,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	CreatedAt      *time.Time   `json:"createdAt,omitempty"`
	DaysRemaining  *int         `json:"daysRemaining,omitempty"`
	IsOverdue      bool         `json:"isOverdue,omitempty"`
}

// Overdue reports whether the task is past due at now and still open.
// The backend's isOverdue flag wins when set.
func (t *Task) Overdue(now time.Time) bool {
	if t.IsOverdue {
		return true
	}
	if t.DueDate == nil || t.Status == StatusCompleted || t.Status == StatusArchived {
		return false
	}
	return now.After(*t.DueDate)
}

// TaskList is one page of tasks plus the backend's total.
type TaskList struct {
	Tasks []Task `json:"data"`
	Total int    `json:"total"`
}

// TaskFilter narrows task listings. Empty fields are not sent.
type TaskFilter struct {
	Timeframe string
	Status    TaskStatus
	Priority  TaskPriority
}

// TaskUpdate is the assignee-side patch.
type TaskUpdate struct {
	Status      TaskStatus `json:"status,omitempty"`
	BoardColumn string     `json:"boardColumn,omitempty"`
	Description string     `json:"description,omitempty"`
}

type TimeLog struct {
	StartedAt       time.Time `json:"startedAt"`
	DurationMinutes int       `json:"durationMinutes"`
}

// File is an in-memory upload. The content is kept as bytes so the request
// can be replayed after a refresh.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewTask is the super-admin create payload, sent as multipart form data.
type NewTask struct {
	Title       string
	Description string
	Category    string
	Priority    TaskPriority
	Status      TaskStatus
	StartDate   time.Time
	DueDate     time.Time
	AssignedTo  []string
	Attachments []File
}

// TaskEdit is the super-admin edit payload. It is sent as JSON unless it
// carries attachments.
type TaskEdit struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
	Status      TaskStatus   `json:"status,omitempty"`
	StartDate   *time.Time   `json:"startDate,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	AssignedTo  []string     `json:"assignedTo,omitempty"`
	Attachments []File       `json:"-"`
}

type ReviewAction string

const (
	ReviewApprove ReviewAction = "APPROVE"
	ReviewReject  ReviewAction = "REJECT"
)

type Category struct {
	ID              string     `json:"_id"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	Description     string     `json:"description,omitempty"`
	Color           string     `json:"color"`
	ParentID        *string    `json:"parentId"`
	IsSystemDefined bool       `json:"isSystemDefined"`
	Children        []Category `json:"children,omitempty"`
}

// NewCategory is the create payload for a category.
type NewCategory struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Color       string  `json:"color,omitempty"`
	ParentID    *string `json:"parentId,omitempty"`
}

// Dashboard summarizes the tasks visible to the current user.
type Dashboard struct {
	User     *User
	Scope    string
	Total    int
	ByStatus map[TaskStatus]int
	Overdue  int
	DueSoon  int
	Tasks    []Task
}
