// Package encode writes rendered frames to disk: merged preview videos
// through one of several encoder backends, and lossless PNG sequences.
package encode
