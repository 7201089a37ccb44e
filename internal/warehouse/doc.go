// Package warehouse issues the bulk load that copies an output CSV object
// into the target table.
//
// Every backend runs the statements from BuildStatements: when the command
// replaces existing rows, a DELETE scoped to the anchor date and the loaded
// locations, then a COPY from the object. Backends:
//
//   - redshift-data: the Redshift Data API, polled until the batch finishes
//   - postgres: a pgx connection and a single transaction
//   - noop: logs the statements
//
// Errors the warehouse reports are LOAD_FAILED. Failures to reach it are
// SINK_UNAVAILABLE. Loaders never retry.
package warehouse
