// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/tensorvault"
	"github.com/poiesic/tensorvault/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. Extra vault options are applied to every
// vault the commands open.
func newApp(vaultOpts ...tensorvault.VaultOption) *cli.App {
	r := &runner{vaultOpts: vaultOpts}

	dbFlag := &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to BadgerDB database directory (overrides config)",
	}
	embeddingFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL (overrides config)",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name (overrides config)",
		},
		&cli.IntFlag{
			Name:  "dimension",
			Usage: "Embedding dimension (overrides config)",
		},
	}

	return &cli.App{
		Name:  "tensorvault",
		Usage: "Versioned tensor store with training, access control and retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show tensor store statistics",
				Flags:  []cli.Flag{dbFlag},
				Action: r.stats,
			},
			{
				Name:  "list",
				Usage: "List stored tensors",
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "entity", Usage: "Only tensors for this entity"},
					&cli.StringFlag{Name: "world", Usage: "Only tensors in this world"},
				},
				Action: r.list,
			},
			{
				Name:      "history",
				Usage:     "Show the version history of a tensor",
				ArgsUsage: "<tensor-id>",
				Flags:     []cli.Flag{dbFlag},
				Action:    r.history,
			},
			{
				Name:      "train",
				Usage:     "Train tensors to a target maturity",
				ArgsUsage: "<tensor-id>...",
				Flags: []cli.Flag{
					dbFlag,
					&cli.Float64Flag{Name: "target", Usage: "Target maturity (overrides config)"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Concurrent workers (overrides config)"},
				},
				Action: r.train,
			},
			{
				Name:  "jobs",
				Usage: "Inspect and maintain the training queue",
				Subcommands: []*cli.Command{
					{
						Name:   "pending",
						Usage:  "List pending jobs in queue order",
						Flags:  []cli.Flag{dbFlag},
						Action: r.jobsPending,
					},
					{
						Name:   "running",
						Usage:  "List running jobs",
						Flags:  []cli.Flag{dbFlag},
						Action: r.jobsRunning,
					},
					{
						Name:  "cleanup",
						Usage: "Release running jobs that exceeded the timeout",
						Flags: []cli.Flag{
							dbFlag,
							&cli.DurationFlag{Name: "timeout", Usage: "Stale job timeout (overrides config)"},
						},
						Action: r.jobsCleanup,
					},
				},
			},
			{
				Name:  "reembed",
				Usage: "Re-embed every tensor description and rebuild the index",
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of tensors to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N tensors",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "only-missing",
						Usage: "Skip tensors whose cached embedding already has the configured dimension",
					},
				}, embeddingFlags...),
				Action: r.reembed,
			},
			{
				Name:      "search",
				Usage:     "Find tensors by description",
				ArgsUsage: "<query>",
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results", Value: 10},
					&cli.Float64Flag{Name: "min-maturity", Usage: "Minimum maturity"},
					&cli.StringSliceFlag{Name: "category", Usage: "Category substring filter (repeatable)"},
				}, embeddingFlags...),
				Action: r.search,
			},
			{
				Name:  "seed",
				Usage: "Add default tensors from a file of entity|world|category|description lines",
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Input file", Required: true},
					&cli.StringFlag{Name: "owner", Usage: "Owner of the created tensors", Value: "system"},
				}, embeddingFlags...),
				Action: r.seed,
			},
			{
				Name:  "audit",
				Usage: "Inspect and maintain the audit log",
				Subcommands: []*cli.Command{
					{
						Name:      "summary",
						Usage:     "Summarize recent access to a tensor",
						ArgsUsage: "<tensor-id>",
						Flags: []cli.Flag{
							dbFlag,
							&cli.IntFlag{Name: "hours", Usage: "Window in hours", Value: 24},
						},
						Action: r.auditSummary,
					},
					{
						Name:  "cleanup",
						Usage: "Delete audit entries older than the retention period",
						Flags: []cli.Flag{
							dbFlag,
							&cli.IntFlag{Name: "days", Usage: "Retention in days (overrides config)"},
						},
						Action: r.auditCleanup,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads --config and the environment, applies command-line
// overrides, and validates the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Read(c.String("config"))
	if err != nil {
		return nil, err
	}

	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
	}
	if host := c.String("embedding-host"); host != "" {
		cfg.Embedding.Host = host
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.Embedding.Model = model
	}
	if dim := c.Int("dimension"); dim > 0 {
		cfg.Embedding.Dimension = dim
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
