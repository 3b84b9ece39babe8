// Package api provides the HTTP REST API for the engine balance service.
//
// Endpoints:
//
// Registry:
//   - GET /api/techs - List loaded tech tiers
//   - GET /api/techs/{name} - Get one tier with its derived TMR bounds
//   - GET /api/techs/{name}/curve?samples=N - Sample the tier's TMR/ISP curve
//   - GET /api/configs - List size-curve configurations
//   - GET /api/configs/{name} - Get one configuration sampled at stock sizes
//   - GET /api/diagnostics - Entries skipped by the last load
//   - POST /api/reload - Re-read the configuration files
//
// Derivation:
//   - POST /api/derive - Derive one engine: {"config": "Lifter", "size": 2.5}
//   - POST /api/batch - Derive a part list synchronously
//
// Runs:
//   - POST /api/runs - Start an asynchronous batch (202 Accepted)
//   - GET /api/runs - List runs, newest first
//   - GET /api/runs/{id} - Get a run and its results
//   - DELETE /api/runs/{id} - Delete a finished run (204)
//   - GET /ws?run={id} - Stream part_derived and run_complete events
//
// Operations:
//   - GET /healthz
//   - GET /metrics - Prometheus metrics
//
// Part lists are sent as JSON:
//
//	{"parts": [{"name": "lifter-25", "size": 2.5, "config": "Lifter", "module": "ModuleEngines"}]}
//
// or as a CSV body with Content-Type text/csv, using the columns
// name,size,config,module[,index]. CSV rows that cannot be read do not fail
// the request; they come back in a row_errors list next to the results:
//
//	{"line": 2, "error": "malformed row: size \"big\" is not a number"}
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status code:
//
//	{"error": "configuration not found: \"Lifter\""}
//
// Unknown tiers, configurations and runs map to 404. Malformed bodies and
// empty part lists map to 400. Deleting a run that is still in progress
// maps to 409. Sizes the model cannot evaluate map to 422. A known path with
// the wrong method maps to 405.
package api
