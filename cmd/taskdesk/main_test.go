package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/courtregistry/taskdesk"
	"github.com/courtregistry/taskdesk/internal/registrytest"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	defer func() { stdout = prev }()

	err := newApp().Run(context.Background(), append([]string{"taskdesk"}, args...))
	return buf.String(), err
}

func TestLoginWithOTPFlag(t *testing.T) {
	srv := registrytest.New(t)

	out, err := runApp(t, "--base-url", srv.URL, "login", "--pj", "PJ-1001", "--otp", registrytest.DefaultOTP)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "signed in as Clerk (user)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWhoamiWithoutSession(t *testing.T) {
	srv := registrytest.New(t)

	_, err := runApp(t, "--base-url", srv.URL, "whoami")
	if err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Fatalf("expected not signed in error, got %v", err)
	}
}

func TestMissingBaseURL(t *testing.T) {
	t.Setenv("TASKDESK_BASE_URL", "")

	if _, err := runApp(t, "whoami"); err == nil || !strings.Contains(err.Error(), "base-url") {
		t.Fatalf("expected missing base url error, got %v", err)
	}
}

func TestPrompt(t *testing.T) {
	var out bytes.Buffer
	code, err := prompt(strings.NewReader(" 123456 \n"), &out, "code: ")
	if err != nil || code != "123456" {
		t.Fatalf("expected 123456, got %q (%v)", code, err)
	}
	if out.String() != "code: " {
		t.Fatalf("expected label written, got %q", out.String())
	}
	if code, err := prompt(strings.NewReader("654321"), &out, ""); err != nil || code != "654321" {
		t.Fatalf("expected input without newline accepted, got %q (%v)", code, err)
	}
}

func TestPrintTasksMarksOverdue(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	var buf bytes.Buffer
	printTasks(&buf, []taskdesk.Task{
		{ID: "t-1", Title: "FILE RECORD", Status: taskdesk.StatusPending, Priority: taskdesk.PriorityHigh, DueDate: &past},
		{ID: "t-2", Title: "INDEX", Status: taskdesk.StatusOnHold, Priority: taskdesk.PriorityLow, DueDate: &future},
		{ID: "t-3", Title: "NO DATE", Status: taskdesk.StatusCompleted, Priority: taskdesk.PriorityLow},
	}, now)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "(overdue)") || strings.Contains(lines[2], "(overdue)") {
		t.Fatalf("unexpected overdue markers:\n%s", buf.String())
	}
	if !strings.Contains(lines[2], "On Hold") {
		t.Fatalf("expected status with space rendered, got %q", lines[2])
	}
}

func TestPrintCategoriesIndents(t *testing.T) {
	parent := "root"
	tree := taskdesk.BuildCategoryTree([]taskdesk.Category{
		{ID: "root", Name: "Filings"},
		{ID: "child", Name: "Appeals", ParentID: &parent},
	})

	var buf bytes.Buffer
	printCategories(&buf, tree, 0)
	if buf.String() != "Filings\n  Appeals\n" {
		t.Fatalf("unexpected tree output %q", buf.String())
	}
}

func TestRedisSessionSurvivesTokenExpiryAcrossRuns(t *testing.T) {
	srv := registrytest.New(t)
	mr := miniredis.RunT(t)
	global := []string{"--base-url", srv.URL, "--redis-addr", mr.Addr()}

	if _, err := runApp(t, append(global, "login", "--pj", "PJ-1001", "--otp", registrytest.DefaultOTP)...); err != nil {
		t.Fatalf("login: %v", err)
	}
	srv.ExpireAccessTokens()

	out, err := runApp(t, append(global, "tasks", "list")...)
	if err != nil {
		t.Fatalf("tasks list after expiry: %v", err)
	}
	if got := srv.Calls("/auth/refresh"); got != 1 {
		t.Fatalf("expected the stored refresh cookie to be exchanged once, got %d", got)
	}
	if len(strings.Split(strings.TrimSpace(out), "\n")) < 2 {
		t.Fatalf("expected a task table, got %q", out)
	}

	if out, err := runApp(t, append(global, "whoami")...); err != nil || !strings.Contains(out, registrytest.ClerkID) {
		t.Fatalf("whoami: %q (%v)", out, err)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	quiet := newLogger(&buf, false)
	quiet.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be suppressed without --verbose, got %q", buf.String())
	}
	quiet.Info("refreshed", "request_id", "r-1")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"request_id":"r-1"`) {
		t.Fatalf("expected a JSON line, got %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, true).Debug("sending", "path", "/tasks/get")
	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "path=/tasks/get") {
		t.Fatalf("expected a debug text line, got %q", buf.String())
	}
}
