// Package commands provides the CLI command definitions for vigil.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/mr-karan/vigil/internal/app"
	"github.com/mr-karan/vigil/internal/config"
	"github.com/mr-karan/vigil/pkg/logger"
)

// Styles for CLI output
var (
	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D13438")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// New creates the root CLI command with all subcommands.
func New(version, commit, date string) *cli.Command {
	return &cli.Command{
		Name:    "vigil",
		Usage:   "Sensor monitoring alert service",
		Version: version,
		Description: `vigil evaluates sensor readings against alerting rules, tracks the
   alert lifecycle, and delivers webhook notifications for high-severity
   alerts.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Value:   "config.toml",
				Sources: cli.EnvVars("VIGIL_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(version),
			versionCommand(version, commit, date),
		},
		DefaultCommand: "serve",
	}
}

func serveCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the vigil server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			debug := cmd.Bool("debug") || strings.EqualFold(cfg.Logging.Level, "debug")
			lo := logger.New(debug)

			fmt.Println(logoStyle.Render("vigil"), mutedStyle.Render(version))

			a := app.New(app.Options{
				Config:  cfg,
				Logger:  lo,
				Version: version,
			})
			if err := a.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}

			// Serve until the signal context is cancelled, then drain.
			errCh := make(chan error, 1)
			go func() {
				errCh <- a.Start()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return a.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			}
		},
	}
}

func versionCommand(version, commit, date string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Println(logoStyle.Render("vigil"))
			fmt.Printf("version: %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
			return nil
		},
	}
}
