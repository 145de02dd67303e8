// Package logs reads back the shared rsextract log file.
//
// The file holds one JSON record per line from every run and worker
// process. Tail returns the last lines or the lines after an offset, and can
// poll for new lines; Filter selects the records of one run, action or take so
// `rsextract logs` can show a single take's history out of interleaved
// worker output.
package logs
