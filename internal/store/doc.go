// Package store provides abstractions shared by persistence implementations:
// the DBTX database handle, transaction helpers, and common store errors.
package store
