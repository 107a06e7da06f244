package taskdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/courtregistry/taskdesk/permission"
)

// AllTasks lists the whole task registry.
func (c *Client) AllTasks(ctx context.Context, filter TaskFilter) (*TaskList, error) {
	if err := c.require(ctx, permission.TasksManage); err != nil {
		return nil, err
	}

	var out TaskList
	err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/superadmin/tasks", Query: filter.query()}, &out)
	if err != nil {
		return nil, err
	}
	if out.Tasks == nil {
		out.Tasks = []Task{}
	}
	return &out, nil
}

// CreateTask creates a task. The payload is sent as multipart form data so
// attachments can travel with it.
func (c *Client) CreateTask(ctx context.Context, task NewTask) (*Task, error) {
	if err := c.require(ctx, permission.TasksManage); err != nil {
		return nil, err
	}
	form, err := task.form()
	if err != nil {
		return nil, err
	}

	var out taskEnvelope
	err = c.Do(ctx, &Request{Method: http.MethodPost, Path: "/superadmin/tasks/create", Multipart: form}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// EditTask replaces task fields. Edits carrying attachments are sent as
// multipart form data, everything else as JSON.
func (c *Client) EditTask(ctx context.Context, id string, edit TaskEdit) (*Task, error) {
	if err := c.require(ctx, permission.TasksManage); err != nil {
		return nil, err
	}
	path, err := taskPath("/superadmin/tasks/%s", id)
	if err != nil {
		return nil, err
	}

	req := &Request{Method: http.MethodPut, Path: path}
	if len(edit.Attachments) > 0 {
		req.Multipart, err = edit.form()
		if err != nil {
			return nil, err
		}
	} else {
		req.JSON = edit
	}

	var out taskEnvelope
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ReviewTask approves or rejects a completed task. Feedback is optional.
func (c *Client) ReviewTask(ctx context.Context, id string, action ReviewAction, feedback string) (*Task, error) {
	if err := c.require(ctx, permission.TasksManage); err != nil {
		return nil, err
	}
	if action != ReviewApprove && action != ReviewReject {
		return nil, fmt.Errorf("%w: review action %q", ErrInvalidRequest, action)
	}
	path, err := taskPath("/superadmin/tasks/review/%s", id)
	if err != nil {
		return nil, err
	}

	body := struct {
		Action   ReviewAction `json:"action"`
		Feedback string       `json:"feedback,omitempty"`
	}{action, strings.TrimSpace(feedback)}

	var out taskEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, JSON: body}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// DeleteTask removes a task from the registry.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.require(ctx, permission.TasksManage); err != nil {
		return err
	}
	path, err := taskPath("/superadmin/tasks/%s", id)
	if err != nil {
		return err
	}
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path}, nil)
}

func (t NewTask) form() (*Form, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrInvalidRequest)
	}
	if t.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: task due date is required", ErrInvalidRequest)
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusPending
	}

	f := &Form{}
	f.Add("title", strings.TrimSpace(t.Title))
	f.Add("priority", string(t.Priority))
	f.Add("status", string(t.Status))
	f.Add("dueDate", t.DueDate.UTC().Format(time.RFC3339))
	if t.Description != "" {
		f.Add("description", t.Description)
	}
	if t.Category != "" {
		f.Add("category", t.Category)
	}
	if !t.StartDate.IsZero() {
		f.Add("startDate", t.StartDate.UTC().Format(time.RFC3339))
	}
	if err := addAssignees(f, t.AssignedTo); err != nil {
		return nil, err
	}
	for _, file := range t.Attachments {
		f.AddFile("attachments", file)
	}
	return f, nil
}

func (e TaskEdit) form() (*Form, error) {
	f := &Form{}
	if e.Title != "" {
		f.Add("title", e.Title)
	}
	if e.Description != "" {
		f.Add("description", e.Description)
	}
	if e.Category != "" {
		f.Add("category", e.Category)
	}
	if e.Priority != "" {
		f.Add("priority", string(e.Priority))
	}
	if e.Status != "" {
		f.Add("status", string(e.Status))
	}
	if e.StartDate != nil {
		f.Add("startDate", e.StartDate.UTC().Format(time.RFC3339))
	}
	if e.DueDate != nil {
		f.Add("dueDate", e.DueDate.UTC().Format(time.RFC3339))
	}
	if len(e.AssignedTo) > 0 {
		if err := addAssignees(f, e.AssignedTo); err != nil {
			return nil, err
		}
	}
	for _, file := range e.Attachments {
		f.AddFile("attachments", file)
	}
	return f, nil
}

// The backend expects assignees as one JSON-encoded array field.
func addAssignees(f *Form, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	f.Add("assignedTo", string(data))
	return nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
