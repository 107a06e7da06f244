package taskdesk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/courtregistry/taskdesk/permission"
)

type taskEnvelope struct {
	Data Task `json:"data"`
}

func (f TaskFilter) query() url.Values {
	q := url.Values{}
	if f.Timeframe != "" {
		q.Set("timeframe", f.Timeframe)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	return q
}

func taskPath(format, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: task id is required", ErrInvalidRequest)
	}
	return fmt.Sprintf(format, url.PathEscape(id)), nil
}

// MyTasks lists the tasks assigned to the current user.
func (c *Client) MyTasks(ctx context.Context, filter TaskFilter) (*TaskList, error) {
	if err := c.require(ctx, permission.TasksRead); err != nil {
		return nil, err
	}

	var out TaskList
	err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/tasks/get", Query: filter.query()}, &out)
	if err != nil {
		return nil, err
	}
	if out.Tasks == nil {
		out.Tasks = []Task{}
	}
	return &out, nil
}

// Task fetches one task.
func (c *Client) Task(ctx context.Context, id string) (*Task, error) {
	if err := c.require(ctx, permission.TasksRead); err != nil {
		return nil, err
	}
	path, err := taskPath("/tasks/%s", id)
	if err != nil {
		return nil, err
	}

	var out taskEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// UpdateTask applies an assignee-side change (status, board column or notes).
func (c *Client) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*Task, error) {
	if err := c.require(ctx, permission.TasksUpdate); err != nil {
		return nil, err
	}
	if update == (TaskUpdate{}) {
		return nil, fmt.Errorf("%w: empty task update", ErrInvalidRequest)
	}
	path, err := taskPath("/tasks/%s", id)
	if err != nil {
		return nil, err
	}

	var out taskEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, JSON: update}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// AddTimeLog records time spent on a task.
func (c *Client) AddTimeLog(ctx context.Context, id string, entry TimeLog) (*Task, error) {
	if err := c.require(ctx, permission.TasksUpdate); err != nil {
		return nil, err
	}
	if entry.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: durationMinutes must be > 0", ErrInvalidRequest)
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = c.now().Add(-minutes(entry.DurationMinutes))
	}
	path, err := taskPath("/tasks/%s/time-logs", id)
	if err != nil {
		return nil, err
	}

	var out taskEnvelope
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: path, JSON: entry}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}
