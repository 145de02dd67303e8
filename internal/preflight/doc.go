// Package preflight provides readiness checks run before a batch extraction
// starts: dataset and output directory access, free space on the output
// filesystem, and availability of the configured video encoder.
//
// `rsextract run` refuses to start when any check fails, so a run never
// spends an hour of decoding only to find it cannot write results.
package preflight
