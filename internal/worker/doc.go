// Package worker implements the bounded claim-process loop run by one
// externally triggered invocation, plus the handler for each job type.
//
// An invocation is stateless: the shared Postgres job table is the only
// coordination point between invocations, so the loop never waits on
// another worker and exits cleanly when its job-count cap or wall-clock
// budget is reached. Anything left unclaimed waits for the next trigger.
package worker
