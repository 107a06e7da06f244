package taskdesk

import (
	"context"
	"time"
)

// DueSoonWindow is how close a due date must be for a task to count as due soon.
const DueSoonWindow = 72 * time.Hour

// Dashboard summarizes the tasks the current user sees on their landing
// page: the whole registry for super-admins, their assignments otherwise.
func (c *Client) Dashboard(ctx context.Context, filter TaskFilter) (*Dashboard, error) {
	user, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	var list *TaskList
	scope := "assigned"
	if user.IsSuperAdmin() {
		scope = "registry"
		list, err = c.AllTasks(ctx, filter)
	} else {
		list, err = c.MyTasks(ctx, filter)
	}
	if err != nil {
		return nil, err
	}

	d := summarize(list.Tasks, c.now())
	d.User = user
	d.Scope = scope
	if list.Total > d.Total {
		d.Total = list.Total
	}
	return d, nil
}

func summarize(tasks []Task, now time.Time) *Dashboard {
	d := &Dashboard{
		Total:    len(tasks),
		ByStatus: make(map[TaskStatus]int, len(TaskStatuses)),
		Tasks:    tasks,
	}
	for _, st := range TaskStatuses {
		d.ByStatus[st] = 0
	}

	for i := range tasks {
		t := &tasks[i]
		d.ByStatus[t.Status]++
		if t.Overdue(now) {
			d.Overdue++
			continue
		}
		if t.DueDate == nil || t.Status == StatusCompleted || t.Status == StatusArchived {
			continue
		}
		if !t.DueDate.After(now.Add(DueSoonWindow)) {
			d.DueSoon++
		}
	}
	return d
}
