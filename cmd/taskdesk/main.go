// Command taskdesk is a terminal client for the court registry task portal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "taskdesk: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "taskdesk",
		Usage: "work with the registry task portal from a terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "portal API base URL (overrides TASKDESK_BASE_URL)",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "redis address holding the session and refresh cookie between runs; in-memory if empty",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log requests and refreshes to stderr",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			whoamiCommand(),
			logoutCommand(),
			tasksCommand(),
			categoriesCommand(),
			dashboardCommand(),
		},
	}
}
