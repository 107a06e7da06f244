package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/courtregistry/taskdesk"
)

var stdout io.Writer = os.Stdout

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "request a one-time code and sign in",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "pj",
				Usage:    "PJ number",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "otp",
				Usage: "one-time code; prompted for when empty",
			},
		},
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			msg, err := s.RequestOTP(ctx, cmd.String("pj"))
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, msg)

			code := cmd.String("otp")
			if code == "" {
				code, err = prompt(os.Stdin, os.Stderr, "code: ")
				if err != nil {
					return err
				}
			}
			user, err := s.VerifyOTP(ctx, code)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "signed in as %s (%s)\n", user.Name, user.Role)
			if !s.persistent() {
				fmt.Fprintln(os.Stderr, "session kept in memory only; pass --redis-addr to stay signed in between runs")
			}
			return nil
		}),
	}
}

func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the signed-in user",
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			user, err := s.CurrentUser(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", user.ID, user.Name, user.Role)
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "sign out and forget the session",
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			if err := s.Logout(ctx); err != nil {
				s.logger.WarnContext(ctx, "backend logout failed", "err", err)
			}
			fmt.Fprintln(stdout, "signed out")
			return nil
		}),
	}
}

func tasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "list and update your tasks",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list tasks assigned to you",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Pending, Acknowledged, Completed, \"On Hold\" or Archived"},
					&cli.StringFlag{Name: "priority", Usage: "Low, Medium, High or Urgent"},
					&cli.StringFlag{Name: "timeframe", Usage: "today, week, month or overdue"},
				},
				Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
					filter, err := taskFilter(cmd)
					if err != nil {
						return err
					}
					list, err := s.MyTasks(ctx, filter)
					if err != nil {
						return err
					}
					printTasks(stdout, list.Tasks, time.Now())
					return nil
				}),
			},
			{
				Name:      "show",
				Usage:     "show one task",
				ArgsUsage: "ID",
				Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
					task, err := s.Task(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					printTask(stdout, task)
					return nil
				}),
			},
			{
				Name:      "status",
				Usage:     "change a task's status",
				ArgsUsage: "ID STATUS",
				Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
					status, ok := taskdesk.ParseTaskStatus(cmd.Args().Get(1))
					if !ok {
						return fmt.Errorf("unknown status %q", cmd.Args().Get(1))
					}
					task, err := s.UpdateTask(ctx, cmd.Args().First(), taskdesk.TaskUpdate{Status: status})
					if err != nil {
						return err
					}
					fmt.Fprintf(stdout, "%s is now %s\n", task.ID, task.Status)
					return nil
				}),
			},
			{
				Name:      "log",
				Usage:     "record time spent on a task",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "minutes", Usage: "time spent", Required: true},
				},
				Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
					entry := taskdesk.TimeLog{DurationMinutes: int(cmd.Int("minutes"))}
					task, err := s.AddTimeLog(ctx, cmd.Args().First(), entry)
					if err != nil {
						return err
					}
					fmt.Fprintf(stdout, "logged %d minutes on %s\n", entry.DurationMinutes, task.ID)
					return nil
				}),
			},
		},
	}
}

func taskFilter(cmd *cli.Command) (taskdesk.TaskFilter, error) {
	filter := taskdesk.TaskFilter{
		Timeframe: cmd.String("timeframe"),
		Priority:  taskdesk.TaskPriority(cmd.String("priority")),
	}
	if raw := cmd.String("status"); raw != "" {
		status, ok := taskdesk.ParseTaskStatus(raw)
		if !ok {
			return filter, fmt.Errorf("unknown status %q", raw)
		}
		filter.Status = status
	}
	return filter, nil
}

func categoriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "browse task categories",
		Commands: []*cli.Command{
			{
				Name:  "tree",
				Usage: "print the category hierarchy",
				Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
					flat, err := s.Categories(ctx)
					if err != nil {
						return err
					}
					printCategories(stdout, taskdesk.BuildCategoryTree(flat), 0)
					return nil
				}),
			},
		},
	}
}

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "summarize your tasks",
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			d, err := s.Dashboard(ctx, taskdesk.TaskFilter{})
			if err != nil {
				return err
			}
			printDashboard(stdout, d)
			return nil
		}),
	}
}
