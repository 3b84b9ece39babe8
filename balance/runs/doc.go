// Package runs keeps the history of asynchronous batch runs.
//
// A Run is created when a batch is submitted, moves from pending to running,
// and ends as complete or canceled together with its per-part results. The
// Manager holds runs in memory and, when given a Persistence, writes every
// state change through to it so finished runs survive a restart.
//
// Run Identifiers:
//
// Runs are identified by random UUIDs. IDs that do not parse as UUIDs are
// rejected before any storage lookup.
//
// Usage:
//
//	persistence, err := runs.NewFilePersistence("runs")
//	manager := runs.NewManagerWithPersistence(persistence, logger)
//	if err := manager.LoadPersisted(); err != nil {
//		log.Fatal(err)
//	}
//
//	run := manager.Create(len(rows))
//	manager.Start(run.ID)
//	manager.Complete(run.ID, results, nil)
//
// Cleanup:
//
// CleanupExpired drops finished runs older than a maximum age from memory
// and storage.
package runs
