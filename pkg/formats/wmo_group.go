package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/wmoforge/pkg/math"
)

// liquidHeaderSize is the fixed part of a MLIQ payload.
const liquidHeaderSize = 30

func (h GroupHeader) disk() diskGroupHeader {
	return diskGroupHeader{
		GroupName:       h.GroupName.disk(),
		DescriptiveName: h.DescriptiveName.disk(),
		Flags:           h.Flags,
		Bounds:          h.Bounds,
		PortalStart:     h.PortalStart,
		PortalCount:     h.PortalCount,
		BatchesA:        h.BatchesA,
		BatchesB:        h.BatchesB,
		BatchesC:        h.BatchesC,
		Fogs:            h.Fogs,
		LiquidType:      h.LiquidType,
		GroupID:         h.GroupID,
		Reserved2:       h.Reserved2,
		Reserved3:       h.Reserved3,
	}
}

func (d diskGroupHeader) header() GroupHeader {
	return GroupHeader{
		GroupName:       nameRefFromDisk(d.GroupName),
		DescriptiveName: nameRefFromDisk(d.DescriptiveName),
		Flags:           d.Flags,
		Bounds:          d.Bounds,
		PortalStart:     d.PortalStart,
		PortalCount:     d.PortalCount,
		BatchesA:        d.BatchesA,
		BatchesB:        d.BatchesB,
		BatchesC:        d.BatchesC,
		Fogs:            d.Fogs,
		LiquidType:      d.LiquidType,
		GroupID:         d.GroupID,
		Reserved2:       d.Reserved2,
		Reserved3:       d.Reserved3,
	}
}

func encodeLiquid(l *Liquid) ([]byte, error) {
	head, err := encodeRecord(l.Header)
	if err != nil {
		return nil, err
	}
	return append(head, l.Data...), nil
}

func decodeLiquid(c Chunk) (*Liquid, error) {
	if len(c.Data) < liquidHeaderSize {
		return nil, fmt.Errorf("%w: %s payload is %d bytes, header needs %d",
			ErrMalformedChunk, c.Tag, len(c.Data), liquidHeaderSize)
	}
	l := &Liquid{}
	if err := binary.Read(bytes.NewReader(c.Data[:liquidHeaderSize]), binary.LittleEndian, &l.Header); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.Tag, err)
	}
	if tail := c.Data[liquidHeaderSize:]; len(tail) > 0 {
		l.Data = append([]byte(nil), tail...)
	}
	return l, nil
}

// WriteGroup writes a group file. The per-triangle and per-vertex tables are
// always present; batches, light and doodad references, vertex colors and
// liquid are written only when populated.
func WriteGroup(w io.Writer, g *Group) error {
	cw := &chunkWriter{w: w}

	cw.chunk(TagVersion, versionPayload(g.Version))
	writeRecord(cw, TagGroupHeader, g.Header.disk())
	writeTable(cw, TagMaterialInfos, g.MaterialInfos)
	writeTable(cw, TagTriangles, g.Triangles)
	writeTable(cw, TagVertices, g.Vertices)
	writeTable(cw, TagNormals, g.Normals)
	writeTable(cw, TagTexCoords, g.TexCoords)
	if len(g.Batches) > 0 {
		writeTable(cw, TagBatches, g.Batches)
	}
	if len(g.LightRefs) > 0 {
		writeTable(cw, TagLightRefs, g.LightRefs)
	}
	if len(g.DoodadRefs) > 0 {
		writeTable(cw, TagDoodadRefs, g.DoodadRefs)
	}
	if len(g.VertexColors) > 0 {
		writeTable(cw, TagVertexColors, g.VertexColors)
	}
	if g.Liquid != nil && cw.err == nil {
		payload, err := encodeLiquid(g.Liquid)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", TagLiquid, err)
		}
		cw.chunk(TagLiquid, payload)
	}
	return cw.err
}

// ReadGroup reads a group file stream.
func ReadGroup(r io.Reader, opts ...ReadOption) (*Group, error) {
	o := newReadOptions(opts)
	cr := NewChunkReader(r)
	cr.SetMaxSize(o.maxSize)

	g := &Group{}
	for {
		c, err := cr.Next()
		if err == io.EOF {
			return g, nil
		}
		if err != nil {
			return nil, err
		}
		if err := g.decodeChunk(c, o); err != nil {
			return nil, err
		}
	}
}

func (g *Group) decodeChunk(c Chunk, o readOptions) error {
	var err error
	switch c.Tag {
	case TagVersion:
		g.Version, err = decodeVersion(c)
	case TagGroupHeader:
		var d diskGroupHeader
		if err = decodeRecord(c, &d); err == nil {
			g.Header = d.header()
		}
	case TagMaterialInfos:
		g.MaterialInfos, err = decodeTable[MaterialInfo](c)
	case TagTriangles:
		g.Triangles, err = decodeTable[Triangle](c)
	case TagVertices:
		g.Vertices, err = decodeTable[math.Vec3](c)
	case TagNormals:
		g.Normals, err = decodeTable[math.Vec3](c)
	case TagTexCoords:
		g.TexCoords, err = decodeTable[math.Vec2](c)
	case TagBatches:
		g.Batches, err = decodeTable[Batch](c)
	case TagLightRefs:
		g.LightRefs, err = decodeTable[uint16](c)
	case TagDoodadRefs:
		g.DoodadRefs, err = decodeTable[uint16](c)
	case TagVertexColors:
		g.VertexColors, err = decodeTable[math.Color](c)
	case TagLiquid:
		g.Liquid, err = decodeLiquid(c)
	default:
		o.unknown(c)
	}
	return err
}

// ParseGroup parses a group file held in memory.
func ParseGroup(data []byte, opts ...ReadOption) (*Group, error) {
	return ReadGroup(bytes.NewReader(data), opts...)
}

// ParseGroupFile reads a group file from disk.
func ParseGroupFile(path string, opts ...ReadOption) (*Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening group file: %w", err)
	}
	defer f.Close()
	return ReadGroup(bufio.NewReader(f), opts...)
}
