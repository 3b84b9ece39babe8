package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/ksp-balance/api"
	"github.com/wricardo/ksp-balance/balance/runs"
	"github.com/wricardo/ksp-balance/balance/service"
	"github.com/wricardo/ksp-balance/settings"
	"github.com/wricardo/ksp-balance/transport/mcp"
	"github.com/wricardo/ksp-balance/transport/websocket"
)

// cleanupInterval is how often finished runs older than the TTL are pruned.
const cleanupInterval = time.Hour

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server with REST API, WebSocket, and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
			&cli.IntFlag{Name: "workers", Usage: "parallel derivations per batch (0 uses every CPU)"},
			&cli.StringFlag{Name: "runs-dir", Usage: "directory where finished runs are stored"},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token (or use NGROK_AUTHTOKEN env var)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (optional)"},
		},
		Action: runServe,
	}
}

// components is the wired service graph shared by serve and mcp
type components struct {
	service service.BalanceService
	hub     *websocket.Hub
	runs    *runs.Manager
	api     *api.Server
}

// buildComponents loads the registry and wires the service, hub and API.
// The hub and asynchronous runs stop when ctx is done. Runs are kept on
// disk only when persist is set.
func buildComponents(ctx context.Context, s *settings.Settings, logger *zap.Logger, persist bool) (*components, error) {
	registry, _, err := loadRegistry(s, logger)
	if err != nil {
		return nil, err
	}

	runStore := runs.NewManager(logger)
	if persist {
		persistence, err := runs.NewFilePersistence(s.RunsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create run persistence: %w", err)
		}
		runStore = runs.NewManagerWithPersistence(persistence, logger)

		// Load persisted runs on startup
		if err := runStore.LoadPersisted(); err != nil {
			logger.Warn("failed to load persisted runs", zap.Error(err))
		}
	}

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	svc := service.NewBalanceService(registry, runStore,
		service.WithPublisher(hub),
		service.WithLogger(logger),
		service.WithWorkers(s.Workers),
		service.WithBaseContext(ctx),
	)

	return &components{
		service: svc,
		hub:     hub,
		runs:    runStore,
		api:     api.NewServer(svc, hub, logger),
	}, nil
}

// localBaseURL is the URL the in-process MCP client uses to reach the API
func localBaseURL(s *settings.Settings) string {
	host := s.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(s.Port))
}

// newRootHandler mounts the API at / and the MCP proxy at /mcp
func newRootHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.Handle("/mcp", mcpClient)
	return mainRouter
}

// runServe starts the HTTP server and, when enabled, an ngrok tunnel serving
// the same handler. It returns after a graceful shutdown.
func runServe(ctx context.Context, cmd *cli.Command) error {
	s, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := buildComponents(ctx, s, logger, true)
	if err != nil {
		return err
	}

	addr := s.Addr()
	handler := newRootHandler(c.api, mcp.NewClient(localBaseURL(s)))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go runCleanupRoutine(ctx, c.runs, s.RunTTL, logger)

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws?run=<run_id>", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	if s.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, s.Ngrok, handler, logger)
		}()
	}

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		logger.Error("HTTP server failed", zap.Error(err))
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx is done
func runNgrokTunnel(ctx context.Context, cfg settings.Ngrok, handler http.Handler, logger *zap.Logger) {
	if cfg.AuthToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info("using custom ngrok domain", zap.String("domain", cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("api", ngrokURL+"/api"),
		zap.String("mcp", ngrokURL+"/mcp"),
	)

	if err := tunnelServer.Serve(tun); err != nil && err != http.ErrServerClosed {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// runCleanupRoutine periodically removes finished runs older than ttl
func runCleanupRoutine(ctx context.Context, manager *runs.Manager, ttl time.Duration, logger *zap.Logger) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpired(ttl); removed > 0 {
				logger.Info("cleaned up expired runs", zap.Int("removed", removed))
			}
		}
	}
}
