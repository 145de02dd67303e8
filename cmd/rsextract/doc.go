// Command rsextract turns paired RealSense recordings into per-frame images
// and side-by-side review videos.
//
// `rsextract run` discovers every recorded take under the dataset directory
// and processes each one in its own `rsextract worker` process, recording
// outcomes in a SQLite ledger that `rsextract status` reads back.
package main
