// Package postgres contains the PostgreSQL implementation of the job store.
// The claim path relies on FOR UPDATE SKIP LOCKED so that concurrent worker
// invocations skip rows another claimant holds instead of blocking on them.
package postgres
