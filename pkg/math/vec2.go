// Package math provides the small vector, color and transform types shared by
// the mesh model, the WMO object model and the converter.
package math

// Vec2 is a 2D vector, used for texture coordinates.
type Vec2 struct {
	X, Y float32
}
