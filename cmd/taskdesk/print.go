package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/courtregistry/taskdesk"
)

func printTasks(w io.Writer, tasks []taskdesk.Task, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE")
	for i := range tasks {
		t := &tasks[i]
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Local().Format("2006-01-02")
			if t.Overdue(now) {
				due += " (overdue)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, due, t.Title)
	}
	_ = tw.Flush()
}

func printTask(w io.Writer, t *taskdesk.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", t.ID)
	fmt.Fprintf(tw, "title\t%s\n", t.Title)
	fmt.Fprintf(tw, "status\t%s\n", t.Status)
	fmt.Fprintf(tw, "priority\t%s\n", t.Priority)
	if t.Category != nil {
		fmt.Fprintf(tw, "category\t%s\n", t.Category.Name)
	}
	if t.DueDate != nil {
		fmt.Fprintf(tw, "due\t%s\n", t.DueDate.Local().Format(time.RFC1123))
	}
	names := make([]string, 0, len(t.AssignedTo))
	for _, u := range t.AssignedTo {
		names = append(names, u.Name)
	}
	fmt.Fprintf(tw, "assigned\t%s\n", strings.Join(names, ", "))
	for _, a := range t.Attachments {
		fmt.Fprintf(tw, "attachment\t%s\t%s\n", a.Name, a.URL)
	}
	if t.Description != "" {
		fmt.Fprintf(tw, "\n%s\n", t.Description)
	}
	_ = tw.Flush()
}

func printCategories(w io.Writer, nodes []taskdesk.Category, depth int) {
	for _, c := range nodes {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), c.Name)
		printCategories(w, c.Children, depth+1)
	}
}

func printDashboard(w io.Writer, d *taskdesk.Dashboard) {
	fmt.Fprintf(w, "%s, %d tasks (%s)\n", d.User.Name, d.Total, d.Scope)
	fmt.Fprintf(w, "overdue %d, due soon %d\n", d.Overdue, d.DueSoon)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, st := range taskdesk.TaskStatuses {
		fmt.Fprintf(tw, "%s\t%d\n", st, d.ByStatus[st])
	}
	_ = tw.Flush()
}
