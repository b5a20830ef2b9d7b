package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/tokenforge/client"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			cl := client.NewClient(serverURL, &http.Client{Timeout: c.Duration("timeout")}, cliLogger())
			if err := cl.Health(context.Background()); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Fprintf(c.App.Writer, "✓ Server is healthy\n")
			fmt.Fprintf(c.App.Writer, "  URL: %s\n", serverURL)
			return nil
		},
	}
}

func listRemoteBuildsCommand() *cli.Command {
	return &cli.Command{
		Name:  "builds",
		Usage: "List recorded builds through the server API",
		Flags: listBuildsFlags(),
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}
			cl := client.NewClient(serverURL, nil, cliLogger())

			list, err := cl.ListBuilds(c.Context, client.ListBuildsParams{
				Payer:     c.String("payer"),
				Operation: c.String("operation"),
				Mint:      c.String("mint"),
				Limit:     c.Int("limit"),
				Offset:    c.Int("offset"),
			})
			if err != nil {
				return fmt.Errorf("failed to list builds: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, list)
			}

			for _, build := range list.Builds {
				fmt.Fprintf(c.App.Writer, "%d\t%s\t%s\t%s\t%s\n",
					build.ID, build.Operation, build.Payer, build.Mint, build.CreatedAt.Format(time.RFC3339))
			}
			fmt.Fprintf(c.App.Writer, "\nShowing %d of %d builds\n", len(list.Builds), list.Total)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "tokenforge CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
