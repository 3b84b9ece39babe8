// Command ksp-balance derives engine stats from tech tiers and size curves.
//
// Subcommands:
//  1. "generate" (default) – derives a CSV part list and exports CSV or per-part config files
//  2. "curve" – prints a tech tier's TMR/ISP curve
//  3. "serve" – runs the HTTP server exposing the REST API, WebSocket, and an /mcp endpoint
//  4. "mcp" – runs an MCP stdio server backed by an internal HTTP API when none is running
//
// Settings come from defaults, an optional balance.yaml, KSPBAL_* environment
// variables and finally explicit flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/logging"
	"github.com/wricardo/ksp-balance/settings"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "ksp-balance"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "Derive balanced rocket engine stats from tech tiers and size curves",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "settings",
				Usage:   "settings file (defaults to ./balance.yaml when present)",
				Sources: cli.EnvVars("KSPBAL_SETTINGS"),
			},
			&cli.StringFlag{
				Name:    "techs",
				Aliases: []string{"t"},
				Usage:   "tech tier file (.ini, .cfg, .yaml)",
			},
			&cli.StringFlag{
				Name:    "configs",
				Aliases: []string{"c"},
				Usage:   "size-curve configuration file (.ini, .cfg, .yaml)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		DefaultCommand: "generate",
		Commands: []*cli.Command{
			generateCommand(),
			curveCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}
}

// resolveSettings loads settings and applies the flags that were set
// explicitly on the command line.
func resolveSettings(cmd *cli.Command) (*settings.Settings, error) {
	s, err := settings.Load(cmd.String("settings"))
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag string
		set  func()
	}{
		{"techs", func() { s.TechFile = cmd.String("techs") }},
		{"configs", func() { s.ConfigFile = cmd.String("configs") }},
		{"debug", func() { s.Debug = cmd.Bool("debug") }},
		{"parts", func() { s.PartsFile = cmd.String("parts") }},
		{"template", func() { s.TemplateFile = cmd.String("template") }},
		{"output", func() { s.Output = cmd.String("output") }},
		{"digits", func() { s.Digits = cmd.Int("digits") }},
		{"workers", func() { s.Workers = cmd.Int("workers") }},
		{"host", func() { s.Host = cmd.String("host") }},
		{"port", func() { s.Port = cmd.Int("port") }},
		{"runs-dir", func() { s.RunsDir = cmd.String("runs-dir") }},
		{"ngrok", func() { s.Ngrok.Enabled = cmd.Bool("ngrok") }},
		{"ngrok-auth", func() { s.Ngrok.AuthToken = cmd.String("ngrok-auth") }},
		{"ngrok-domain", func() { s.Ngrok.Domain = cmd.String("ngrok-domain") }},
	}
	for _, o := range overrides {
		if cmd.IsSet(o.flag) {
			o.set()
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// setup resolves settings and builds the logger for a command
func setup(cmd *cli.Command) (*settings.Settings, *zap.Logger, error) {
	s, err := resolveSettings(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(s.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return s, logger, nil
}

// loadRegistry loads the tech and size-curve files named by s
func loadRegistry(s *settings.Settings, logger *zap.Logger) (*config.Manager, config.Diagnostics, error) {
	manager, diags, err := config.NewManager(s.TechFile, s.ConfigFile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load balance configuration: %w", err)
	}
	return manager, diags, nil
}
