// Package mesh holds the source zone mesh model and the loaders that produce
// it from disk or from an archive.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/wmoforge/pkg/math"
)

// ErrFaceIndexOutOfRange reports a face that references a missing vertex.
var ErrFaceIndexOutOfRange = errors.New("face index out of range")

// Vertex is a source vertex: a double precision position and a texture
// coordinate.
type Vertex struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
	U float32 `yaml:"u"`
	V float32 `yaml:"v"`
}

// Position returns the vertex position narrowed to float32.
func (v Vertex) Position() math.Vec3 {
	return math.Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// TexCoord returns the texture coordinate.
func (v Vertex) TexCoord() math.Vec2 {
	return math.Vec2{X: v.U, Y: v.V}
}

// Face is a triangle given by three 0-based vertex indices.
type Face struct {
	V1 uint32 `yaml:"v1"`
	V2 uint32 `yaml:"v2"`
	V3 uint32 `yaml:"v3"`
}

// Indices returns the three indices in order.
func (f Face) Indices() [3]uint32 {
	return [3]uint32{f.V1, f.V2, f.V3}
}

// Mesh is a loaded zone mesh.
type Mesh struct {
	Name     string   `yaml:"name"`
	Vertices []Vertex `yaml:"vertices"`
	Faces    []Face   `yaml:"faces"`
}

// Validate checks that every face index refers to an existing vertex.
func (m *Mesh) Validate() error {
	n := uint32(len(m.Vertices))
	for i, f := range m.Faces {
		for _, idx := range f.Indices() {
			if idx >= n {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrFaceIndexOutOfRange, i, idx, n)
			}
		}
	}
	return nil
}

// Bounds returns the box around all vertex positions.
func (m *Mesh) Bounds() math.BoundingBox {
	b := math.EmptyBounds()
	for _, v := range m.Vertices {
		b = b.Extend(v.Position())
	}
	return b
}
