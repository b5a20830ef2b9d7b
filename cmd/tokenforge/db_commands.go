package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/tokenforge/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listBuildsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "payer",
			Aliases: []string{"p"},
			Usage:   "Filter by fee payer",
		},
		&cli.StringFlag{
			Name:    "operation",
			Aliases: []string{"o"},
			Usage:   "Filter by operation (create_token, mint_token, transfer_token, burn_token, delegate_token)",
		},
		&cli.StringFlag{
			Name:    "mint",
			Aliases: []string{"m"},
			Usage:   "Filter by mint address",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of builds to show",
			Value:   db.DefaultListLimit,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Number of builds to skip",
		},
	}
}

func listBuildsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-builds",
		Usage:   "List recorded builds, newest first",
		Aliases: []string{"ls"},
		Flags:   listBuildsFlags(),
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			params := db.ListBuildsParams{
				Payer:     c.String("payer"),
				Operation: c.String("operation"),
				Mint:      c.String("mint"),
				Limit:     int32(c.Int("limit")),
				Offset:    int32(c.Int("offset")),
			}

			builds, err := store.ListBuilds(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to list builds: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, builds)
			}

			printBuilds(c, builds)
			fmt.Fprintf(os.Stderr, "\nTotal: %d builds\n", len(builds))
			return nil
		},
	}
}

func printBuilds(c *cli.Context, builds []*db.Build) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOPERATION\tNETWORK\tPAYER\tMINT\tINSTRUCTIONS\tCREATED ACCOUNTS\tCREATED")
	for _, b := range builds {
		created := "-"
		if len(b.CreatedAccounts) > 0 {
			created = strings.Join(b.CreatedAccounts, ",")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			b.ID,
			b.Operation,
			b.Network,
			b.Payer,
			b.Mint,
			b.InstructionCount,
			created,
			b.CreatedAt.Format(time.RFC3339),
		)
	}
	w.Flush()
}

func getBuildCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-build",
		Usage:     "Get a recorded build",
		Aliases:   []string{"get"},
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: build id")
			}
			id, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid build id %q: %w", c.Args().First(), err)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			build, err := store.GetBuild(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to get build: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, build)
			}
			printBuilds(c, []*db.Build{build})
			return nil
		},
	}
}

func pruneBuildsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete build records older than a given age",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "Delete builds created before now minus this duration",
				Value: 30 * 24 * time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			age := c.Duration("older-than")
			if age <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			deleted, err := store.DeleteBuildsOlderThan(context.Background(), time.Now().Add(-age))
			if err != nil {
				return fmt.Errorf("failed to prune builds: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, map[string]int64{"deleted": deleted})
			}
			fmt.Fprintf(c.App.Writer, "Deleted %d builds older than %s\n", deleted, age)
			return nil
		},
	}
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}
