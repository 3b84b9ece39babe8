// Package mcp provides a Model Context Protocol front end for the engine
// balance service.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for registry lookups and engine derivation
//   - A thin client that proxies every tool call to the REST API
//
// MCP Tools:
//   - list_techs, get_tech, tech_curve: Inspect tech tiers
//   - list_configs, get_config: Inspect size-curve configurations
//   - derive_engine: Derive one engine from a configuration and a size
//   - batch_derive: Derive a part list synchronously
//   - start_run, get_run: Derive a part list asynchronously
//   - diagnostics, reload: Inspect and refresh the loaded files
//   - balance_instructions: Explain the model
//
// Transport Modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: The /mcp endpoint mounted next to the REST API
//
// Usage:
//
//	client := mcp.NewClient("http://127.0.0.1:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
