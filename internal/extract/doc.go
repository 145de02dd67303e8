// Package extract turns a RealSense recording into a sequence of aligned
// color and depth frame pairs.
//
// Open validates the recording against the configured resolution and rate
// and starts a decode goroutine that runs as fast as the file can be read.
// TryGetNext waits a bounded time for the next pair; anything other than Ok
// means the caller should stop pulling. Every opened Stream must be closed.
package extract
