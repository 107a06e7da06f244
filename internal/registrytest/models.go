package registrytest

import (
	"strings"
	"time"
)

const (
	UserRole       = "user"
	AdminRole      = "admin"
	SuperAdminRole = "superadmin"
)

func roleRank(role string) int {
	switch strings.ToLower(role) {
	case SuperAdminRole:
		return 3
	case AdminRole:
		return 2
	case UserRole:
		return 1
	}
	return 0
}

type Account struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PJNumber string `json:"pjNumber"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

func (a *Account) ref() UserRef {
	return UserRef{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role}
}

// profile is the user shape returned by verify-otp and refresh.
func (a *Account) profile() map[string]string {
	return map[string]string{
		"id":       a.ID,
		"role":     a.Role,
		"name":     a.Name,
		"pjNumber": a.PJNumber,
	}
}

type UserRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

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

type TimeLog struct {
	StartedAt       time.Time `json:"startedAt"`
	DurationMinutes int       `json:"durationMinutes"`
	User            string    `json:"user"`
}

type Task struct {
	ID             string       `json:"_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Status         string       `json:"status"`
	Priority       string       `json:"priority"`
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
	TimeLogs       []TimeLog    `json:"timeLogs,omitempty"`
	ReviewFeedback string       `json:"reviewFeedback,omitempty"`
}

func (t *Task) clone() Task {
	out := *t
	out.AssignedTo = append([]UserRef(nil), t.AssignedTo...)
	out.Attachments = append([]Attachment(nil), t.Attachments...)
	out.TimeLogs = append([]TimeLog(nil), t.TimeLogs...)
	return out
}

func (t *Task) assignedTo(userID string) bool {
	for _, u := range t.AssignedTo {
		if u.ID == userID {
			return true
		}
	}
	return false
}

type Category struct {
	ID              string      `json:"_id"`
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	Description     string      `json:"description,omitempty"`
	Color           string      `json:"color"`
	ParentID        *string     `json:"parentId"`
	IsSystemDefined bool        `json:"isSystemDefined"`
	Children        []*Category `json:"children,omitempty"`
}

func slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func (s *Server) seed() {
	for _, a := range []*Account{
		{ID: SuperAdminID, Name: "Registrar", Email: "registrar@court.test", PJNumber: "PJ-0001", Role: SuperAdminRole, IsActive: true},
		{ID: AdminID, Name: "Deputy", Email: "deputy@court.test", PJNumber: "PJ-0002", Role: AdminRole, IsActive: true},
		{ID: ClerkID, Name: "Clerk", Email: "clerk@court.test", PJNumber: "PJ-1001", Role: UserRole, IsActive: true},
	} {
		s.accounts[a.ID] = a
	}

	root := "cat-filings"
	for _, c := range []*Category{
		{ID: root, Name: "Filings", Slug: "filings", Color: "#2563eb", IsSystemDefined: true},
		{ID: "cat-appeals", Name: "Appeals", Slug: "appeals", Color: "#16a34a", ParentID: &root},
		{ID: "cat-affidavits", Name: "Affidavits", Slug: "affidavits", Color: "#ca8a04", ParentID: &root},
		{ID: "cat-records", Name: "Records", Slug: "records", Color: "#9333ea"},
	} {
		s.categories[c.ID] = c
	}

	now := time.Now().UTC()
	clerk := s.accounts[ClerkID].ref()
	admin := s.accounts[SuperAdminID].ref()
	for _, t := range []*Task{
		{ID: "task-1", Title: "FILE APPEAL RECORD", Status: "Pending", Priority: "High",
			Category: &CategoryRef{ID: "cat-appeals", Name: "Appeals"}, DueDate: ptr(now.Add(48 * time.Hour))},
		{ID: "task-2", Title: "INDEX AFFIDAVITS", Status: "Acknowledged", Priority: "Medium",
			Category: &CategoryRef{ID: "cat-affidavits", Name: "Affidavits"}, DueDate: ptr(now.Add(-24 * time.Hour))},
		{ID: "task-3", Title: "ARCHIVE 2019 RECORDS", Status: "Completed", Priority: "Low",
			Category: &CategoryRef{ID: "cat-records", Name: "Records"}, DueDate: ptr(now.Add(-72 * time.Hour))},
	} {
		t.AssignedTo = []UserRef{clerk}
		t.CreatedBy = &admin
		t.CreatedAt = ptr(now.Add(-96 * time.Hour))
		s.tasks[t.ID] = t
		s.taskOrder = append(s.taskOrder, t.ID)
	}
}

func ptr[T any](v T) *T {
	return &v
}
