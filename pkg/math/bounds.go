package math

import "math"

// BoundingBox is an axis-aligned box given by two opposite corners.
type BoundingBox struct {
	Min Vec3
	Max Vec3
}

// UnitBox returns the [(0,0,0), (1,1,1)] box used as a placeholder when no
// geometry is available to measure.
func UnitBox() BoundingBox {
	return BoundingBox{Max: Vec3{1, 1, 1}}
}

// EmptyBounds returns an inverted box that any Extend call will replace.
func EmptyBounds() BoundingBox {
	inf := float32(math.Inf(1))
	return BoundingBox{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether no point has been added to the box.
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend returns the box grown to contain p.
func (b BoundingBox) Extend(p Vec3) BoundingBox {
	return BoundingBox{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing both boxes.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	if b.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return b
	}
	return BoundingBox{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}
