// Package service provides the application layer for the balance generator.
//
// The service package implements:
//   - Listing and describing tech tiers and size-curve configurations
//   - Single and batch engine derivation
//   - Tech curve sampling for previews
//   - Asynchronous runs with progress publishing
//   - Registry reloads and load diagnostics
//
// Core Interfaces:
//
// BalanceService is the interface every transport (HTTP, WebSocket, MCP)
// talks to. Registry is the source of tiers and configurations and is
// satisfied by *config.Manager. RunStore tracks asynchronous runs and is
// satisfied by *runs.Manager. Publisher receives per-part progress and is
// satisfied by the WebSocket hub.
//
// Usage:
//
//	registry, diags, err := config.NewManager(techPath, configPath, logger)
//	runStore := runs.NewManager(logger)
//	svc := service.NewBalanceService(registry, runStore,
//		service.WithPublisher(hub),
//		service.WithLogger(logger),
//	)
//
//	result, err := svc.Derive(ctx, "Lifter", 2.5)
//
// Errors:
//
// Lookups return config.ErrTechNotFound, config.ErrConfigNotFound or
// runs.ErrRunNotFound. Inputs outside the model's domain return errors
// wrapping engine.ErrDomain, and malformed requests return ErrInvalidInput.
package service
