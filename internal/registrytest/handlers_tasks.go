package registrytest

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var validStatus = map[string]bool{
	"Pending": true, "Acknowledged": true, "Completed": true, "On Hold": true, "Archived": true,
}

var validPriority = map[string]bool{
	"Low": true, "Medium": true, "High": true, "Urgent": true,
}

func (s *Server) listTasks(r *http.Request, keep func(*Task) bool) []Task {
	status := r.URL.Query().Get("status")
	priority := r.URL.Query().Get("priority")
	timeframe := r.URL.Query().Get("timeframe")
	now := time.Now()

	out := []Task{}
	for _, id := range s.taskOrder {
		t, ok := s.tasks[id]
		if !ok || !keep(t) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		if priority != "" && t.Priority != priority {
			continue
		}
		if !inTimeframe(t, timeframe, now) {
			continue
		}
		out = append(out, t.clone())
	}
	return out
}

func inTimeframe(t *Task, timeframe string, now time.Time) bool {
	if t.DueDate == nil {
		return timeframe == ""
	}
	switch timeframe {
	case "":
		return true
	case "today":
		y1, m1, d1 := t.DueDate.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case "week":
		return t.DueDate.Before(now.Add(7 * 24 * time.Hour))
	case "month":
		return t.DueDate.Before(now.AddDate(0, 1, 0))
	case "overdue":
		return t.DueDate.Before(now) && t.Status != "Completed" && t.Status != "Archived"
	}
	return true
}

func (s *Server) handleMyTasks(w http.ResponseWriter, r *http.Request, who *Account) {
	s.mu.Lock()
	tasks := s.listTasks(r, func(t *Task) bool { return t.assignedTo(who.ID) })
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": tasks, "total": len(tasks)})
}

func (s *Server) handleAllTasks(w http.ResponseWriter, r *http.Request, who *Account) {
	s.mu.Lock()
	tasks := s.listTasks(r, func(*Task) bool { return true })
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": tasks, "total": len(tasks)})
}

// visibleTask returns the task when who may see it. Callers hold s.mu.
func (s *Server) visibleTask(id string, who *Account) *Task {
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	if roleRank(who.Role) >= roleRank(SuperAdminRole) || t.assignedTo(who.ID) {
		return t
	}
	return nil
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request, who *Account) {
	s.mu.Lock()
	t := s.visibleTask(mux.Vars(r)["id"], who)
	var out Task
	if t != nil {
		out = t.clone()
	}
	s.mu.Unlock()
	if t == nil {
		writeMessage(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, who *Account) {
	var body struct {
		Status      string `json:"status"`
		BoardColumn string `json:"boardColumn"`
		Description string `json:"description"`
	}
	if !decodeJSON(r, &body) {
		writeMessage(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if body.Status != "" && !validStatus[body.Status] {
		writeMessage(w, http.StatusBadRequest, "Invalid status")
		return
	}

	s.mu.Lock()
	t := s.visibleTask(mux.Vars(r)["id"], who)
	if t == nil {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Task not found")
		return
	}
	now := time.Now().UTC()
	if body.Status != "" && body.Status != t.Status {
		t.Status = body.Status
		switch body.Status {
		case "Acknowledged":
			t.AcknowledgedAt = &now
		case "Completed":
			t.CompletedAt = &now
		}
	}
	if body.BoardColumn != "" {
		t.BoardColumn = body.BoardColumn
	}
	if body.Description != "" {
		t.Description = body.Description
	}
	out := t.clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleTimeLog(w http.ResponseWriter, r *http.Request, who *Account) {
	var body TimeLog
	if !decodeJSON(r, &body) || body.DurationMinutes <= 0 {
		writeMessage(w, http.StatusBadRequest, "durationMinutes must be positive")
		return
	}

	s.mu.Lock()
	t := s.visibleTask(mux.Vars(r)["id"], who)
	if t == nil {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Task not found")
		return
	}
	body.User = who.ID
	t.TimeLogs = append(t.TimeLogs, body)
	out := t.clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// taskFields is the writable part of a task as sent by create and edit.
type taskFields struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *string
	Status      *string
	StartDate   *time.Time
	DueDate     *time.Time
	AssignedTo  []string
	Attachments []Attachment
}

func readTaskFields(r *http.Request) (*taskFields, string) {
	f := &taskFields{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return nil, "Malformed multipart body"
		}
		str := func(key string) *string {
			if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
				return &vs[0]
			}
			return nil
		}
		f.Title, f.Description, f.Category = str("title"), str("description"), str("category")
		f.Priority, f.Status = str("priority"), str("status")
		for key, dst := range map[string]**time.Time{"startDate": &f.StartDate, "dueDate": &f.DueDate} {
			if v := str(key); v != nil {
				ts, err := time.Parse(time.RFC3339, *v)
				if err != nil {
					return nil, "Invalid " + key
				}
				*dst = &ts
			}
		}
		if v := str("assignedTo"); v != nil {
			if err := json.Unmarshal([]byte(*v), &f.AssignedTo); err != nil {
				return nil, "assignedTo must be a JSON array"
			}
		}
		for _, fh := range r.MultipartForm.File["attachments"] {
			f.Attachments = append(f.Attachments, Attachment{
				Name:     fh.Filename,
				URL:      "/files/" + uuid.NewString(),
				FileType: fh.Header.Get("Content-Type"),
				PublicID: uuid.NewString(),
			})
		}
		return f, ""
	}

	var body struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Category    *string    `json:"category"`
		Priority    *string    `json:"priority"`
		Status      *string    `json:"status"`
		StartDate   *time.Time `json:"startDate"`
		DueDate     *time.Time `json:"dueDate"`
		AssignedTo  []string   `json:"assignedTo"`
	}
	if !decodeJSON(r, &body) {
		return nil, "Invalid body"
	}
	f.Title, f.Description, f.Category = body.Title, body.Description, body.Category
	f.Priority, f.Status = body.Priority, body.Status
	f.StartDate, f.DueDate, f.AssignedTo = body.StartDate, body.DueDate, body.AssignedTo
	return f, ""
}

// apply copies fields onto t. Callers hold s.mu.
func (s *Server) apply(t *Task, f *taskFields) string {
	if f.Priority != nil && !validPriority[*f.Priority] {
		return "Invalid priority"
	}
	if f.Status != nil && !validStatus[*f.Status] {
		return "Invalid status"
	}
	if f.Title != nil {
		t.Title = *f.Title
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
	if f.Category != nil {
		cat, ok := s.categories[*f.Category]
		if !ok {
			return "Unknown category"
		}
		t.Category = &CategoryRef{ID: cat.ID, Name: cat.Name}
	}
	if f.StartDate != nil {
		t.StartDate = f.StartDate
	}
	if f.DueDate != nil {
		t.DueDate = f.DueDate
	}
	if f.AssignedTo != nil {
		refs := make([]UserRef, 0, len(f.AssignedTo))
		for _, id := range f.AssignedTo {
			acct, ok := s.accounts[id]
			if !ok {
				return "Unknown assignee " + id
			}
			refs = append(refs, acct.ref())
		}
		t.AssignedTo = refs
	}
	t.Attachments = append(t.Attachments, f.Attachments...)
	return ""
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, who *Account) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeMessage(w, http.StatusBadRequest, "Expected multipart/form-data")
		return
	}
	f, msg := readTaskFields(r)
	if f == nil {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	if f.Title == nil || strings.TrimSpace(*f.Title) == "" || f.DueDate == nil {
		writeMessage(w, http.StatusBadRequest, "Title and due date are required")
		return
	}

	now := time.Now().UTC()
	creator := who.ref()
	t := &Task{
		ID:         "task-" + uuid.NewString(),
		Status:     "Pending",
		Priority:   "Medium",
		AssignedTo: []UserRef{},
		CreatedBy:  &creator,
		CreatedAt:  &now,
	}

	s.mu.Lock()
	if msg := s.apply(t, f); msg != "" {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	s.tasks[t.ID] = t
	s.taskOrder = append([]string{t.ID}, s.taskOrder...)
	out := t.clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (s *Server) handleEditTask(w http.ResponseWriter, r *http.Request, who *Account) {
	f, msg := readTaskFields(r)
	if f == nil {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	s.mu.Lock()
	t, ok := s.tasks[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Task not found")
		return
	}
	if msg := s.apply(t, f); msg != "" {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	out := t.clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleReviewTask(w http.ResponseWriter, r *http.Request, who *Account) {
	var body struct {
		Action   string `json:"action"`
		Feedback string `json:"feedback"`
	}
	if !decodeJSON(r, &body) {
		writeMessage(w, http.StatusBadRequest, "Invalid body")
		return
	}

	s.mu.Lock()
	t, ok := s.tasks[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Task not found")
		return
	}
	switch body.Action {
	case "APPROVE":
		now := time.Now().UTC()
		t.Status = "Completed"
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
	case "REJECT":
		t.Status = "Pending"
		t.CompletedAt = nil
	default:
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "Action must be APPROVE or REJECT")
		return
	}
	t.ReviewFeedback = body.Feedback
	out := t.clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, who *Account) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	_, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
		for i, tid := range s.taskOrder {
			if tid == id {
				s.taskOrder = append(s.taskOrder[:i], s.taskOrder[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeMessage(w, http.StatusNotFound, "Task not found")
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted")
}
