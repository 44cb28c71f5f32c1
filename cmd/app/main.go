package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/citemark/internal"
	pkgconfig "github.com/starford/citemark/pkg/config"
)

var version = "dev"

// loadConfig reads the config file when present and applies flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	return cfg, nil
}

func commonOpts(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func requirePaths(cmd *cli.Command) ([]string, error) {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return nil, cli.Exit("at least one markdown file is required", 2)
	}
	return paths, nil
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	paths, err := requirePaths(cmd)
	if err != nil {
		return err
	}
	opts, err := commonOpts(cmd)
	if err != nil {
		return err
	}
	if err := internal.Validate(ctx, paths, opts...); err != nil {
		if errors.Is(err, internal.ErrCitationErrors) {
			return cli.Exit("", 1)
		}
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

func extractAction(ctx context.Context, cmd *cli.Command) error {
	paths, err := requirePaths(cmd)
	if err != nil {
		return err
	}
	opts, err := commonOpts(cmd)
	if err != nil {
		return err
	}
	if err := internal.Extract(ctx, paths, cmd.Bool("full-files"), opts...); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	opts, err := commonOpts(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	opts, err := commonOpts(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "citemark",
		Usage:   "Validate Markdown citations and extract the content they cite",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional for validate and extract)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault root used for file-name fallback and vault-absolute links",
				Sources: cli.EnvVars("VAULT_PATH"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate every citation in the given files and print the JSON report",
				ArgsUsage: "FILE...",
				Action:    validateAction,
			},
			{
				Name:      "extract",
				Usage:     "Extract cited sections, blocks and files into deduplicated JSON",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "full-files",
						Usage: "Also extract full-file links without a force marker",
					},
				},
				Action: extractAction,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live revalidation events",
				Action: serveAction,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the citation tools over MCP stdio",
				Action: mcpAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
