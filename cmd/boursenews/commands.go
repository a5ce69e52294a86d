package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"BourseNews/internal/app"
	"BourseNews/internal/config"
	"BourseNews/internal/infrastructure/storage"
	"BourseNews/internal/logging"
)

func rootApp() *cli.App {
	return &cli.App{
		Name:  "boursenews",
		Usage: "Collect market news feeds, annotate them with an LLM and render a dashboard",
		Description: `BourseNews fetches the configured RSS/Atom feeds, skips entries it has already
		stored, asks a chat model for a market read of each new entry and keeps everything in a
		local SQLite file. Every run rewrites dashboard.html, items.json and daily_summary.txt.

		Flags can be set via environment variables, e.g.:

		--config => BOURSENEWS_CONFIG=boursenews.yaml
		--out-dir => BOURSENEWS_OUT_DIR=output
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"BOURSENEWS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "out-dir",
				Usage:   "Directory for the store and the generated artifacts",
				EnvVars: []string{"BOURSENEWS_OUT_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			runCmd(),
			renderCmd(),
			migrateCmd(),
			watchCmd(),
			feedsCmd(),
		},
		Action: runAction,
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:        "run",
		Usage:       "Run one full pass over every feed",
		Description: `Fetches every feed, annotates new entries, stores them and rewrites the artifacts.`,
		Action:      runAction,
	}
}

func runAction(ctx *cli.Context) error {
	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	// The credential is resolved before any storage or network access.
	apiKey, err := config.LoadAPIKey(cfg.ChatGPT.APIKeyEnv, cfg.ChatGPT.EnvFile)
	if err != nil {
		return err
	}

	application, err := app.New(ctx.Context, cfg, apiKey, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Run(ctx.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "Done. New items: %d (skipped %d, feed faults %d, annotation faults %d)\n",
		report.NewItems, report.SkippedItems, len(report.FeedFaults), len(report.AnnotationFaults))
	printArtifact(ctx, "Dashboard", report.Artifacts.DashboardPath)
	printArtifact(ctx, "Snapshot", report.Artifacts.SnapshotPath)
	printArtifact(ctx, "Digest", report.Artifacts.DigestPath)
	return nil
}

func renderCmd() *cli.Command {
	return &cli.Command{
		Name:        "render",
		Usage:       "Rebuild the artifacts from the store",
		Description: `Rewrites dashboard.html, items.json and daily_summary.txt without fetching. No API key is needed.`,
		Action: func(ctx *cli.Context) error {
			cfg, logger, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			application, err := app.New(ctx.Context, cfg, "", logger)
			if err != nil {
				return err
			}
			defer application.Close()

			artifacts, err := application.Render(ctx.Context)
			if err != nil {
				return err
			}

			fmt.Fprintf(ctx.App.Writer, "Rendered %d items\n", artifacts.Items)
			printArtifact(ctx, "Dashboard", artifacts.DashboardPath)
			return nil
		},
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Apply schema migrations to the store",
		Description: `Creates the SQLite store if it does not exist and applies pending migrations.`,
		Action: func(ctx *cli.Context) error {
			cfg, _, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			path := cfg.Output.DatabasePath()
			repo, err := storage.Open(ctx.Context, path)
			if err != nil {
				return err
			}
			if err := repo.Close(); err != nil {
				return fmt.Errorf("close store: %w", err)
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve store path: %w", err)
			}
			version, dirty, err := storage.SchemaVersion(abs)
			if err != nil {
				return err
			}

			fmt.Fprintf(ctx.App.Writer, "Store %s at schema version %d (dirty=%t)\n", abs, version, dirty)
			return nil
		},
	}
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:        "watch",
		Usage:       "Repeat the run on a fixed interval until interrupted",
		Description: `Runs immediately, then every --interval. Runs never overlap.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Time between runs (defaults to scheduler.interval from the config)",
				EnvVars: []string{"BOURSENEWS_INTERVAL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, logger, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			apiKey, err := config.LoadAPIKey(cfg.ChatGPT.APIKeyEnv, cfg.ChatGPT.EnvFile)
			if err != nil {
				return err
			}

			application, err := app.New(ctx.Context, cfg, apiKey, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Watch(ctx.Context, ctx.Duration("interval"))
		},
	}
}

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:  "feeds",
		Usage: "List the configured feeds",
		Action: func(ctx *cli.Context) error {
			cfg, _, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tURL")
			for _, f := range cfg.Feeds {
				fmt.Fprintf(w, "%s\t%s\n", f.Name, f.URL)
			}
			return w.Flush()
		},
	}
}

func loadConfig(ctx *cli.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}

	if dir := ctx.String("out-dir"); dir != "" {
		cfg.Output.Dir = dir
	}
	if level := ctx.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logger := logging.NewWithWriter(ctx.App.Writer, cfg.Logging.Level)
	return cfg, logger, nil
}

func printArtifact(ctx *cli.Context, label, path string) {
	if path == "" {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	fmt.Fprintf(ctx.App.Writer, "%s: %s\n", label, path)
}
