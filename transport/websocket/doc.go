// Package websocket streams asynchronous run progress to browser clients.
//
// The websocket package implements:
//   - Run-scoped subscriptions (?run=<id>)
//   - A part_derived event for every finished part
//   - A run_complete event carrying the final run summary
//   - Connection lifecycle management with ping/pong keepalive
//
// Architecture:
//
// A central Hub owns every subscription. All map access happens on the
// goroutine running Hub.Run; publishers and connections talk to it over
// channels. Each connection has a write pump and a read pump, and a client
// whose send buffer fills up is dropped.
//
// Message Protocol:
//
// Each frame is one JSON document:
//
//	{"run_id": "...", "event": "part_derived", "index": 3, "result": {...}}
//	{"run_id": "...", "event": "run_complete", "run": {...}}
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	svc := service.NewBalanceService(registry, runStore, service.WithPublisher(hub))
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("run"), nil)
//	})
package websocket
