package align

import "math"

// Extrinsics is a rigid transform p' = R*p + T. Rotation is row-major.
type Extrinsics struct {
	Rotation    [9]float64
	Translation [3]float64
}

// Identity returns the transform that leaves points unchanged.
func Identity() Extrinsics {
	return Extrinsics{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// FromQuaternion builds a transform from a unit quaternion (x, y, z, w) and a
// translation in metres.
func FromQuaternion(qx, qy, qz, qw float64, t [3]float64) Extrinsics {
	n := math.Sqrt(qx*qx + qy*qy + qz*qz + qw*qw)
	if n == 0 {
		return Extrinsics{Rotation: Identity().Rotation, Translation: t}
	}
	qx, qy, qz, qw = qx/n, qy/n, qz/n, qw/n
	return Extrinsics{
		Rotation: [9]float64{
			1 - 2*(qy*qy+qz*qz), 2 * (qx*qy - qz*qw), 2 * (qx*qz + qy*qw),
			2 * (qx*qy + qz*qw), 1 - 2*(qx*qx+qz*qz), 2 * (qy*qz - qx*qw),
			2 * (qx*qz - qy*qw), 2 * (qy*qz + qx*qw), 1 - 2*(qx*qx+qy*qy),
		},
		Translation: t,
	}
}

// Apply transforms a point.
func (e Extrinsics) Apply(p [3]float64) [3]float64 {
	r := e.Rotation
	return [3]float64{
		r[0]*p[0] + r[1]*p[1] + r[2]*p[2] + e.Translation[0],
		r[3]*p[0] + r[4]*p[1] + r[5]*p[2] + e.Translation[1],
		r[6]*p[0] + r[7]*p[1] + r[8]*p[2] + e.Translation[2],
	}
}

// Inverse returns the transform that undoes e.
func (e Extrinsics) Inverse() Extrinsics {
	r := e.Rotation
	rt := [9]float64{
		r[0], r[3], r[6],
		r[1], r[4], r[7],
		r[2], r[5], r[8],
	}
	t := e.Translation
	return Extrinsics{
		Rotation: rt,
		Translation: [3]float64{
			-(rt[0]*t[0] + rt[1]*t[1] + rt[2]*t[2]),
			-(rt[3]*t[0] + rt[4]*t[1] + rt[5]*t[2]),
			-(rt[6]*t[0] + rt[7]*t[1] + rt[8]*t[2]),
		},
	}
}

// Then returns the transform that applies e first and next second.
func (e Extrinsics) Then(next Extrinsics) Extrinsics {
	a, b := next.Rotation, e.Rotation
	var r [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = a[i*3]*b[j] + a[i*3+1]*b[3+j] + a[i*3+2]*b[6+j]
		}
	}
	return Extrinsics{Rotation: r, Translation: next.Apply(e.Translation)}
}

// IsIdentity reports whether e is (numerically) the identity transform.
func (e Extrinsics) IsIdentity() bool {
	id := Identity()
	for i := range e.Rotation {
		if math.Abs(e.Rotation[i]-id.Rotation[i]) > 1e-9 {
			return false
		}
	}
	for _, v := range e.Translation {
		if math.Abs(v) > 1e-9 {
			return false
		}
	}
	return true
}
