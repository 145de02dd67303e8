// Package take turns one recorded take into extracted artifacts.
//
// A take is a pair of recordings of the same action captured by two cameras.
// Processor.Process opens both recordings, pairs their aligned frames in
// arrival order, and writes two side-by-side videos (color and false-color
// depth) plus four PNG sequences and a CBOR frame manifest. Every outcome is
// reported as a Status value; nothing panics or returns an error past
// Process, so a pool can run takes in isolation and aggregate the results.
package take
