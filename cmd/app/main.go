package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ignite/internal"
	"github.com/starford/ignite/internal/thoughtservice"
	pkgconfig "github.com/starford/ignite/pkg/config"
)

var version = "dev"

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

// oneShot adapts a service call into a command action that prints its result
// as JSON on stdout.
func oneShot(fn func(ctx context.Context, cmd *cli.Command, svc *thoughtservice.Service) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		return internal.Exec(ctx, func(ctx context.Context, svc *thoughtservice.Service) error {
			v, err := fn(ctx, cmd, svc)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}, opts...)
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "ignite",
		Usage:  "Jot short thoughts locally and keep them merged with one shared remote file",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the background sync session",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "add",
				Usage:     "Save a thought and push it when signed in",
				ArgsUsage: "<text>",
				Action: oneShot(func(ctx context.Context, cmd *cli.Command, svc *thoughtservice.Service) (any, error) {
					content := strings.Join(cmd.Args().Slice(), " ")
					if strings.TrimSpace(content) == "" {
						return nil, errors.New("add: text is required")
					}
					return svc.Save(ctx, content)
				}),
			},
			{
				Name:  "list",
				Usage: "List recent thoughts, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of thoughts",
						Value: thoughtservice.DefaultListLimit,
					},
					&cli.BoolFlag{
						Name:  "unsynced",
						Usage: "Only thoughts not yet on the remote",
					},
				},
				Action: oneShot(func(ctx context.Context, cmd *cli.Command, svc *thoughtservice.Service) (any, error) {
					if cmd.Bool("unsynced") {
						return svc.Unsynced(ctx)
					}
					return svc.List(ctx, int(cmd.Int("limit")))
				}),
			},
			{
				Name:  "sync",
				Usage: "Pull, merge and push once",
				Action: oneShot(func(ctx context.Context, _ *cli.Command, svc *thoughtservice.Service) (any, error) {
					return svc.Sync(ctx)
				}),
			},
			{
				Name:  "stats",
				Usage: "Show local thought counts",
				Action: oneShot(func(ctx context.Context, _ *cli.Command, svc *thoughtservice.Service) (any, error) {
					return svc.Stats(ctx)
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
