package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultbridge/internal"
	pkgconfig "github.com/starford/vaultbridge/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if vault := cmd.String("vault"); vault != "" {
		cfg.Vault.Path = vault
	}
	cfg.ExpandPaths()
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

// datasetCommand binds one default dataset to a command without flags.
func datasetCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := options(cmd)
			if err != nil {
				return err
			}
			return internal.Export(ctx, name, opts...)
		},
	}
}

func simpleCommand(name, usage string, run func(context.Context, ...internal.Option) error) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := options(cmd)
			if err != nil {
				return err
			}
			return run(ctx, opts...)
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "vaultbridge",
		Usage:   "Export Obsidian vault metadata, links and backlinks to JSON",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory, overrides vault.path",
				Sources: cli.EnvVars("VAULT_PATH"),
			},
		},
		Commands: []*cli.Command{
			datasetCommand("connections", "Update Connections"),
			datasetCommand("courses", "Update Courses"),
			datasetCommand("resources", "Update Resources"),
			datasetCommand("tech", "Update Tech"),
			datasetCommand("prompts", "Update Prompts"),
			{
				Name:      "export",
				Usage:     "Export one dataset, or every dataset with --all",
				ArgsUsage: "<dataset>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Export every configured dataset"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					if cmd.Bool("all") {
						return internal.ExportAll(ctx, opts...)
					}
					name := cmd.Args().First()
					if name == "" {
						return fmt.Errorf("dataset name is required")
					}
					return internal.Export(ctx, name, opts...)
				},
			},
			simpleCommand("all-except-md", "Write the folder and non-Markdown file listing", internal.AllExceptMd),
			simpleCommand("canvases", "Write the canvas file listing", internal.Canvases),
			{
				Name:  "datasets",
				Usage: "Print the configured datasets",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					return internal.Datasets(ctx, os.Stdout, opts...)
				},
			},
			{
				Name:  "serve",
				Usage: "Run the HTTP API with metrics and export events",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Usage: "Re-export on vault changes"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					opts = append(opts, internal.WithWatch(cmd.Bool("watch")))
					if err := internal.Run(ctx, opts...); err != nil {
						return fmt.Errorf("app run error: %w", err)
					}
					return nil
				},
			},
			simpleCommand("watch", "Re-export every dataset when the vault changes", internal.Watch),
			simpleCommand("mcp", "Run the MCP server on stdio", internal.ServeMCP),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
