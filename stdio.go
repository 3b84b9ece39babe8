package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wricardo/ksp-balance/logging"
	"github.com/wricardo/ksp-balance/transport/mcp"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp", "mcp-stdio"},
		Usage:   "Run an MCP stdio server",
		Description: "Reuses a running API server on the configured host and port when one " +
			"answers /healthz, and otherwise starts an internal one on a random loopback port.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "host of an existing API server"},
			&cli.IntFlag{Name: "port", Usage: "port of an existing API server"},
		},
		Action: runStdioMCP,
	}
}

// runStdioMCP serves MCP over stdio. Stdout carries the protocol, so every
// log line goes to stderr.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	level := zapcore.InfoLevel
	if s.Debug {
		level = zapcore.DebugLevel
	}
	logger := logging.Stderr(level)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	externalURL := localBaseURL(s)
	baseURL := externalURL
	logger.Info("checking for external API server", zap.String("url", externalURL))

	if !apiAvailable(ctx, externalURL) {
		logger.Info("no external API server found, starting internal HTTP server")

		c, err := buildComponents(ctx, s, logger, false)
		if err != nil {
			return err
		}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		httpServer := &http.Server{Handler: c.api}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
	}

	logger.Info("MCP stdio server ready", zap.String("api", baseURL))

	if err := server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable reports whether an API server answers on baseURL
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
