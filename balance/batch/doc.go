// Package batch reads part lists and derives their engines in parallel.
//
// A part list is CSV with the columns name, size, config, module and an
// optional index:
//
//	# name,size,config,module,index
//	lifter-small,0.625,Lifter,ModuleEngines
//	lifter-large,2.5,Lifter,ModuleEngines,1
//
// A header row whose first cell is "name", blank lines and lines starting
// with '#' are skipped. Rows with a malformed size or index are reported as
// RowErrors and the rest of the list still loads.
//
// Every row is derived independently. A row naming an unknown configuration
// or a size outside the model's domain fails on its own without aborting the
// batch, and results are returned in input order.
//
// Usage:
//
//	rows, rowErrs := batch.ReadRows(file)
//	p := batch.NewProcessor(8, logger)
//	results, err := p.Run(ctx, rows, manager)
package batch
