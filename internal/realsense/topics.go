package realsense

import (
	"regexp"
	"strconv"
)

// StreamKind distinguishes the two modalities we extract.
type StreamKind int

const (
	StreamUnknown StreamKind = iota
	StreamDepth
	StreamColor
)

func (k StreamKind) String() string {
	switch k {
	case StreamDepth:
		return "depth"
	case StreamColor:
		return "color"
	default:
		return "unknown"
	}
}

// TopicRole says what a topic carries for a stream.
type TopicRole int

const (
	RoleOther TopicRole = iota
	RoleImage
	RoleCameraInfo
	RoleStreamInfo
	RoleExtrinsics
	RoleDepthUnits
)

// Topic is a classified RealSense bag topic.
type Topic struct {
	Kind   StreamKind
	Role   TopicRole
	Sensor int
	// Reference is the stream group index an extrinsics topic is relative to.
	Reference int
}

var (
	streamTopicRE = regexp.MustCompile(`^/device_\d+/sensor_(\d+)/(Depth|Color)_\d+/(image/data|info/camera_info|info|tf/(\d+))$`)
	depthUnitsRE  = regexp.MustCompile(`^/device_\d+/sensor_(\d+)/option/Depth Units/value$`)
)

// ClassifyTopic maps a RealSense topic name to its stream and role.
func ClassifyTopic(topic string) Topic {
	if m := depthUnitsRE.FindStringSubmatch(topic); m != nil {
		sensor, _ := strconv.Atoi(m[1])
		return Topic{Kind: StreamDepth, Role: RoleDepthUnits, Sensor: sensor}
	}
	m := streamTopicRE.FindStringSubmatch(topic)
	if m == nil {
		return Topic{}
	}
	sensor, _ := strconv.Atoi(m[1])
	t := Topic{Sensor: sensor}
	switch m[2] {
	case "Depth":
		t.Kind = StreamDepth
	case "Color":
		t.Kind = StreamColor
	}
	switch {
	case m[3] == "image/data":
		t.Role = RoleImage
	case m[3] == "info/camera_info":
		t.Role = RoleCameraInfo
	case m[3] == "info":
		t.Role = RoleStreamInfo
	case m[4] != "":
		t.Role = RoleExtrinsics
		t.Reference, _ = strconv.Atoi(m[4])
	}
	return t
}

// Topic names written by the RealSense recorder for the default D400 layout.
const (
	DepthImageTopic      = "/device_0/sensor_0/Depth_0/image/data"
	DepthCameraInfoTopic = "/device_0/sensor_0/Depth_0/info/camera_info"
	DepthStreamInfoTopic = "/device_0/sensor_0/Depth_0/info"
	DepthExtrinsicsTopic = "/device_0/sensor_0/Depth_0/tf/0"
	DepthUnitsTopic      = "/device_0/sensor_0/option/Depth Units/value"
	ColorImageTopic      = "/device_0/sensor_1/Color_0/image/data"
	ColorCameraInfoTopic = "/device_0/sensor_1/Color_0/info/camera_info"
	ColorStreamInfoTopic = "/device_0/sensor_1/Color_0/info"
	ColorExtrinsicsTopic = "/device_0/sensor_1/Color_0/tf/0"
)
