// Package rosbag reads ROS1 bag (format 2.0) containers.
//
// The reader walks the file sequentially, decompressing chunks as it reaches
// them and yielding message records in the order they were written. It never
// consults the trailing index, so recordings that were cut off before the
// index was written (a killed recorder, a full disk) still replay up to the
// last complete record; the truncation is reported through ErrTruncated.
//
// Message payloads are returned undecoded. Interpreting them is the caller's
// job (see internal/realsense for the RealSense topic layout).
package rosbag
