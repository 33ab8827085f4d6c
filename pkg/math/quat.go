package math

// Quat represents a quaternion rotation.
// Components are stored as X, Y, Z, W where W is the scalar part, which is
// also the order doodad placements keep them on disk.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}
