// Package pool fans take jobs out to a fixed number of workers.
//
// Each job is handed to a Runner; the production runner re-executes the
// rsextract binary as `rsextract worker` so that a crash or leak in one take
// cannot affect another. Run always returns one status per job, in job
// order, and never stops early because a take failed.
package pool
