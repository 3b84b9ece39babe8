package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/runs"
	"github.com/wricardo/ksp-balance/balance/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"KSP Engine Balance",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`KSP Engine Balance - MCP Interface

This is a thin client that proxies all requests to the REST API server.

PURPOSE:
Derive mass, thrust and specific impulse for rocket engines of any size from a
tech tier (TMR to ISP curve) and a size curve (size to mass and TMR multiplier).

AVAILABLE TOOLS:
- list_techs / get_tech: Inspect tech tiers and their TMR bounds
- tech_curve: Sample a tier's TMR to ISP curve
- list_configs / get_config: Inspect size-curve configurations
- derive_engine: Derive one engine from a configuration and a size
- batch_derive: Derive a list of parts in one call
- start_run / get_run: Derive a large part list asynchronously
- diagnostics: Entries skipped while loading the configuration files
- reload: Re-read the configuration files
- balance_instructions: How the balance model works`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Registry
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_techs",
		Description: "List loaded tech tiers with their TMR bounds",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTechs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_tech",
		Description: "Get one tech tier, its derived values and the configurations built on it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Tech tier name",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleGetTech)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tech_curve",
		Description: "Sample a tech tier's TMR to ISP curve between its minimum and maximum TMR",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Tech tier name",
				},
				"samples": map[string]interface{}{
					"type":        "integer",
					"description": "Number of evenly spaced samples (default 21)",
					"minimum":     2,
				},
			},
			Required: []string{"name"},
		},
	}, c.handleTechCurve)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List size-curve configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_config",
		Description: "Get one size-curve configuration evaluated at the stock part sizes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Configuration name",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleGetConfig)

	// Derivation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "derive_engine",
		Description: "Derive mass, thrust, vacuum ISP and atmospheric ISP for one engine",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config": map[string]interface{}{
					"type":        "string",
					"description": "Size-curve configuration name",
				},
				"size": map[string]interface{}{
					"type":        "number",
					"description": "Engine diameter in meters (e.g. 1.25)",
				},
			},
			Required: []string{"config", "size"},
		},
	}, c.handleDeriveEngine)

	partSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":   map[string]interface{}{"type": "string"},
			"size":   map[string]interface{}{"type": "number"},
			"config": map[string]interface{}{"type": "string"},
			"module": map[string]interface{}{"type": "string"},
			"index":  map[string]interface{}{"type": "integer"},
		},
		"required": []string{"name", "size", "config", "module"},
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "batch_derive",
		Description: "Derive a list of parts. Failing parts are reported individually and do not stop the batch",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"parts": map[string]interface{}{
					"type":        "array",
					"items":       partSchema,
					"description": "Parts to derive",
				},
			},
			Required: []string{"parts"},
		},
	}, c.handleBatchDerive)

	// Runs
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_run",
		Description: "Start an asynchronous derivation run and return its ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"parts": map[string]interface{}{
					"type":        "array",
					"items":       partSchema,
					"description": "Parts to derive",
				},
			},
			Required: []string{"parts"},
		},
	}, c.handleStartRun)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_run",
		Description: "Get the status and results of a run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run ID returned by start_run",
				},
			},
			Required: []string{"run_id"},
		},
	}, c.handleGetRun)

	// Operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "diagnostics",
		Description: "List configuration entries that were skipped while loading, and why",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleDiagnostics)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reload",
		Description: "Re-read the tech and configuration files",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleReload)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "balance_instructions",
		Description: "Explain the balance model: tech curves, size curves and how engines are derived",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleBalanceInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"].(string); ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// partsArgument converts the loosely typed parts array into rows
func partsArgument(args map[string]interface{}) ([]batch.Row, error) {
	raw, ok := args["parts"]
	if !ok {
		return nil, fmt.Errorf("parts is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var rows []batch.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("invalid parts: %w", err)
	}
	return rows, nil
}

// Tool handlers

func (c *Client) handleListTechs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int                `json:"count"`
		Techs []service.TechInfo `json:"techs"`
	}

	if err := c.apiCall(ctx, "GET", "/api/techs", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tech Tiers (%d):\n\n", response.Count)
	for _, t := range response.Techs {
		fmt.Fprintf(&b, "- %s: TMR %s..%s (optimal %s), ISP %s..%s\n",
			t.Name, num(t.MinTmr), num(t.MaxTmr), num(t.Params.OptimalTmr),
			num(t.Params.MinIsp), num(t.Params.MaxIsp))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetTech(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := arguments(request)["name"].(string)

	var tech service.TechInfo
	if err := c.apiCall(ctx, "GET", "/api/techs/"+url.PathEscape(name), nil, &tech); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTechInfo(&tech)), nil
}

func (c *Client) handleTechCurve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["name"].(string)

	path := "/api/techs/" + url.PathEscape(name) + "/curve"
	if samples, ok := args["samples"].(float64); ok {
		path += fmt.Sprintf("?samples=%d", int(samples))
	}

	var curve service.CurveResult
	if err := c.apiCall(ctx, "GET", path, nil, &curve); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCurve(&curve)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int                  `json:"count"`
		Configs []service.ConfigInfo `json:"configs"`
	}

	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Configurations (%d):\n\n", response.Count)
	for _, cfg := range response.Configs {
		fmt.Fprintf(&b, "- %s (tech: %s, base size %s, base mass %s)\n",
			cfg.Name, cfg.Tech, num(cfg.Params.BaseSize), num(cfg.Params.BaseMass))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := arguments(request)["name"].(string)

	var cfg service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs/"+url.PathEscape(name), nil, &cfg); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatConfigInfo(&cfg)), nil
}

func (c *Client) handleDeriveEngine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configName, _ := args["config"].(string)
	size, ok := args["size"].(float64)
	if !ok {
		return mcp.NewToolResultError("size must be a number"), nil
	}

	body := map[string]interface{}{
		"config": configName,
		"size":   size,
	}

	var result service.DeriveResult
	if err := c.apiCall(ctx, "POST", "/api/derive", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatDeriveResult(&result)), nil
}

func (c *Client) handleBatchDerive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := partsArgument(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.BatchResult
	if err := c.apiCall(ctx, "POST", "/api/batch", map[string]interface{}{"parts": rows}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBatchResult(result.Results, result.RowErrors, result.Succeeded, result.Failed)), nil
}

func (c *Client) handleStartRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := partsArgument(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var run runs.Run
	if err := c.apiCall(ctx, "POST", "/api/runs", map[string]interface{}{"parts": rows}, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Started run: %s\nParts: %d\nStatus: %s\n\nUse get_run with run_id %q to fetch results.",
		run.ID, run.Total, run.Status, run.ID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, _ := arguments(request)["run_id"].(string)

	var run runs.Run
	if err := c.apiCall(ctx, "GET", "/api/runs/"+url.PathEscape(runID), nil, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRun(&run)), nil
}

func (c *Client) handleDiagnostics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count       int             `json:"count"`
		Diagnostics []diagnosticDTO `json:"diagnostics"`
	}

	if err := c.apiCall(ctx, "GET", "/api/diagnostics", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatDiagnostics(response.Diagnostics)), nil
}

func (c *Client) handleReload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Techs       int             `json:"techs"`
		Configs     int             `json:"configs"`
		Diagnostics []diagnosticDTO `json:"diagnostics"`
	}

	if err := c.apiCall(ctx, "POST", "/api/reload", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Reloaded %d tech tiers and %d configurations.\n\n%s",
		response.Techs, response.Configs, formatDiagnostics(response.Diagnostics))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleBalanceInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(balanceInstructions), nil
}

// diagnosticDTO mirrors the JSON form of config.Diagnostic
type diagnosticDTO struct {
	Kind    config.Kind `json:"kind"`
	Source  string      `json:"source"`
	Section string      `json:"section"`
	Field   string      `json:"field"`
	Error   string      `json:"error"`
}

const balanceInstructions = `KSP Engine Balance - How the Model Works

TECH CURVE (one per tech tier):
- optimalTmr: the thrust-to-mass ratio with the best ISP (maxIsp)
- tmrScaling: maxTmr = optimalTmr * tmrScaling, minTmr = optimalTmr / tmrScaling
- minIsp: the ISP at minTmr and at maxTmr
- exponent: shape of the ISP falloff on either side of optimalTmr
- atmosphereMultiplier: atmospheric ISP = vacuum ISP * atmosphereMultiplier

TMR MULTIPLIER:
- 0 maps to minTmr, 1 maps to optimalTmr, 2 maps to maxTmr
- Values outside [0, 2] are clamped to that range

SIZE CURVE (one per configuration, built on a tech tier):
- mass = baseMass * (size / baseSize) ^ sizeMassExponent
- tmrMultiplier = baseTmrMultiplier * (size / baseSize) ^ sizeTmrExponent
- Engines smaller than baseSize usually get a higher TMR and a lower ISP

DERIVING AN ENGINE:
1. Compute mass and the TMR multiplier from the size
2. Map the multiplier to a TMR through the tech curve
3. thrust = mass * TMR
4. Read vacuum ISP from the tech curve at that TMR and scale it for atmosphere

ERRORS:
- Sizes must be positive and results must be finite
- A failing part in a batch is reported on its own and the rest still derive
- Configuration entries that fail to load are listed by the diagnostics tool

WORKFLOW:
1. list_configs to see what is available
2. get_config to see a configuration at the stock sizes (0.625, 1.25, 2.5, 3.75)
3. derive_engine or batch_derive for the parts you need
4. start_run for very large part lists, then poll get_run`
