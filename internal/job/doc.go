// Package job defines the domain model for the persistent job queue: the
// job record, its status state machine, the typed payloads for each job
// type, and the Store contract that the Postgres implementation satisfies.
package job
