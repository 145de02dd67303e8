// Package realsense decodes recordings written by the RealSense SDK recorder.
//
// A recording is a ROS1 bag with one topic group per sensor stream. The
// package reads the camera models, depth units and stream-to-reference
// transforms that precede the first frame, then yields images grouped into
// frame sets by capture time. Sets are not guaranteed to be complete; the
// recorder drops frames under load and the caller decides what to skip.
package realsense
