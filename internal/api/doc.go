// Package api implements the HTTP surface of the job queue: the trigger
// endpoints the scheduler calls to run worker invocations, and the admin
// endpoints operators use to enqueue, inspect, retry and cancel jobs.
package api
