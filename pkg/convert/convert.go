// Package convert turns a source zone mesh into a map-object root and its
// groups.
package convert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/wmoforge/pkg/formats"
	"github.com/Faultbox/wmoforge/pkg/math"
	"github.com/Faultbox/wmoforge/pkg/mesh"
)

// Conversion errors.
var (
	ErrTooManyVertices = errors.New("too many vertices for one group")
	ErrInvalidOptions  = errors.New("invalid conversion options")
)

// Result is the outcome of one conversion.
type Result struct {
	Root *formats.Root
	// DroppedTexCoords counts texture coordinates computed but not stored.
	DroppedTexCoords int
}

// Converter converts meshes with a fixed set of options.
// It holds no per-call state and may be shared between goroutines.
type Converter struct {
	opts Options
	log  *zap.Logger
}

// New creates a Converter.
func New(opts Options) (*Converter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{opts: opts, log: log}, nil
}

// Convert converts m with DefaultOptions.
func Convert(m *mesh.Mesh, name string) (*formats.Root, error) {
	c, err := New(DefaultOptions())
	if err != nil {
		return nil, err
	}
	res, err := c.Convert(context.Background(), m, name)
	if err != nil {
		return nil, err
	}
	return res.Root, nil
}

// partition is the slice of the mesh that becomes one group.
type partition struct {
	// vertices are source vertex indices in group order.
	vertices []uint32
	// faces hold group-local indices.
	faces [][3]uint16
}

// Convert builds the root for m. Every face becomes one triangle flagged for
// collision with material 0, and every vertex one position and normal.
func (c *Converter) Convert(ctx context.Context, m *mesh.Mesh, name string) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	parts, err := c.partition(m)
	if err != nil {
		return nil, err
	}

	groups := make([]*formats.Group, len(parts))
	eg, ctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			groups[i] = c.buildGroup(m, p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	root := formats.NewRoot()
	root.Materials = append(root.Materials, formats.Material{})

	bounds := math.EmptyBounds()
	for _, g := range groups {
		root.AddGroup(formats.GroupInfo{Bounds: g.Header.Bounds, Name: formats.NoName}, g)
		bounds = bounds.Union(g.Header.Bounds)
	}
	switch {
	case c.opts.Bounds == BoundsPlaceholder:
		root.Header.Bounds = math.UnitBox()
	case bounds.IsEmpty():
		root.Header.Bounds = math.BoundingBox{}
	default:
		root.Header.Bounds = bounds
	}
	root.SyncHeader()

	res := &Result{Root: root}
	if c.opts.TexCoords == TexCoordsDrop {
		for _, p := range parts {
			res.DroppedTexCoords += len(p.vertices)
		}
		if res.DroppedTexCoords > 0 {
			c.log.Warn("texture coordinates dropped",
				zap.String("map", name),
				zap.Int("count", res.DroppedTexCoords))
		}
	}

	c.log.Debug("mesh converted",
		zap.String("map", name),
		zap.Int("groups", len(groups)),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("faces", len(m.Faces)))
	return res, nil
}

// partition splits the mesh into groups. Without a limit the whole mesh is
// one group and face indices are kept as they are.
func (c *Converter) partition(m *mesh.Mesh) ([]partition, error) {
	limit := c.opts.GroupVertexLimit
	if limit == 0 || len(m.Vertices) <= limit {
		if len(m.Vertices) > MaxGroupVertices {
			return nil, fmt.Errorf("%w: %d vertices, limit %d", ErrTooManyVertices, len(m.Vertices), MaxGroupVertices)
		}
		p := partition{
			vertices: make([]uint32, len(m.Vertices)),
			faces:    make([][3]uint16, len(m.Faces)),
		}
		for i := range p.vertices {
			p.vertices[i] = uint32(i)
		}
		for i, f := range m.Faces {
			p.faces[i] = [3]uint16{uint16(f.V1), uint16(f.V2), uint16(f.V3)}
		}
		return []partition{p}, nil
	}

	var parts []partition
	cur := partition{}
	local := map[uint32]uint16{}
	for _, f := range m.Faces {
		idx := f.Indices()
		fresh := 0
		for _, v := range idx {
			if _, ok := local[v]; !ok {
				fresh++
			}
		}
		if len(cur.vertices)+fresh > limit {
			parts = append(parts, cur)
			cur = partition{}
			local = map[uint32]uint16{}
		}

		var tri [3]uint16
		for k, v := range idx {
			li, ok := local[v]
			if !ok {
				li = uint16(len(cur.vertices))
				local[v] = li
				cur.vertices = append(cur.vertices, v)
			}
			tri[k] = li
		}
		cur.faces = append(cur.faces, tri)
	}
	if len(cur.faces) > 0 || len(parts) == 0 {
		parts = append(parts, cur)
	}
	return parts, nil
}

func (c *Converter) buildGroup(m *mesh.Mesh, p partition) *formats.Group {
	g := formats.NewGroup()

	source := make([]math.Vec3, len(p.vertices))
	texCoords := make([]math.Vec2, len(p.vertices))
	for i, src := range p.vertices {
		v := m.Vertices[src]
		source[i] = v.Position()
		texCoords[i] = v.TexCoord()
	}

	// Normals are accumulated in the source frame and carried through the
	// axis as directions, so a translation in the axis never skews them.
	normals := make([]math.Vec3, len(p.vertices))
	if c.opts.ComputeNormals {
		for _, f := range p.faces {
			a, b, cc := source[f[0]], source[f[1]], source[f[2]]
			n := b.Sub(a).Cross(cc.Sub(a))
			for _, k := range f {
				normals[k] = normals[k].Add(n)
			}
		}
	}

	positions := source
	if !c.opts.Axis.IsIdentity() {
		positions = make([]math.Vec3, len(source))
		for i, pos := range source {
			positions[i] = c.opts.Axis.TransformVec3(pos)
			normals[i] = c.opts.Axis.TransformDirection(normals[i])
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}

	for _, f := range p.faces {
		g.AddTriangle(formats.Triangle(f), formats.MaterialInfo{Flags: formats.TriangleCollision, Material: 0})
	}

	bounds := math.EmptyBounds()
	for i, pos := range positions {
		g.AddVertex(pos, normals[i])
		bounds = bounds.Extend(pos)
	}
	if c.opts.TexCoords == TexCoordsStore {
		g.TexCoords = append(g.TexCoords, texCoords...)
	}

	switch {
	case c.opts.Bounds == BoundsPlaceholder:
		g.Header.Bounds = math.UnitBox()
	case bounds.IsEmpty():
		g.Header.Bounds = math.BoundingBox{}
	default:
		g.Header.Bounds = bounds
	}
	return g
}
