package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Faultbox/wmoforge/pkg/math"
)

// chunkWriter writes chunks until the first failure and remembers it.
type chunkWriter struct {
	w   io.Writer
	err error
}

func (cw *chunkWriter) chunk(tag ChunkTag, payload []byte) {
	if cw.err != nil {
		return
	}
	cw.err = WriteChunk(cw.w, tag, payload)
}

// writeTable encodes records and writes them as one chunk.
func writeTable[T any](cw *chunkWriter, tag ChunkTag, records []T) {
	if cw.err != nil {
		return
	}
	payload, err := encodeTable(records)
	if err != nil {
		cw.err = fmt.Errorf("encoding %s: %w", tag, err)
		return
	}
	cw.chunk(tag, payload)
}

func writeRecord(cw *chunkWriter, tag ChunkTag, record any) {
	if cw.err != nil {
		return
	}
	payload, err := encodeRecord(record)
	if err != nil {
		cw.err = fmt.Errorf("encoding %s: %w", tag, err)
		return
	}
	cw.chunk(tag, payload)
}

func writeNames(cw *chunkWriter, tag ChunkTag, names []string) {
	if cw.err != nil {
		return
	}
	payload, err := EncodeStringTable(names)
	if err != nil {
		cw.err = fmt.Errorf("encoding %s: %w", tag, err)
		return
	}
	cw.chunk(tag, payload)
}

func versionPayload(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func encodeSkybox(name string) ([]byte, error) {
	if strings.IndexByte(name, 0) >= 0 {
		return nil, fmt.Errorf("%w: skybox %q contains a NUL byte", ErrMalformedChunk, name)
	}
	if name == "" {
		return make([]byte, 4), nil
	}
	size := (len(name) + 1 + 3) &^ 3
	b := make([]byte, size)
	copy(b, name)
	return b, nil
}

func writeSkybox(cw *chunkWriter, name string) {
	if cw.err != nil {
		return
	}
	payload, err := encodeSkybox(name)
	if err != nil {
		cw.err = fmt.Errorf("encoding %s: %w", TagSkybox, err)
		return
	}
	cw.chunk(TagSkybox, payload)
}

// WriteRoot writes the root file chunks in their canonical order.
// Header counts are recomputed from the tables; root is not modified.
func WriteRoot(w io.Writer, root *Root) error {
	cw := &chunkWriter{w: w}

	infos := make([]diskGroupInfo, len(root.GroupInfos))
	for i, gi := range root.GroupInfos {
		infos[i] = diskGroupInfo{Flags: gi.Flags, Bounds: gi.Bounds, Name: gi.Name.disk()}
	}

	cw.chunk(TagVersion, versionPayload(root.Version))
	writeRecord(cw, TagHeader, root.syncedHeader())
	writeNames(cw, TagTextureNames, root.TextureNames)
	writeTable(cw, TagMaterials, root.Materials)
	writeNames(cw, TagGroupNames, root.GroupNames)
	writeTable(cw, TagGroupInfos, infos)
	writeSkybox(cw, root.Skybox)
	writeTable(cw, TagPortals, root.Portals)
	writeTable(cw, TagPortalInfos, root.PortalInfos)
	writeTable(cw, TagPortalRefs, root.PortalRefs)
	writeTable(cw, TagVisibleVertices, root.VisibleVertices)
	writeTable(cw, TagVisibleBlocks, root.VisibleBlocks)
	writeTable(cw, TagLights, root.Lights)
	writeTable(cw, TagDoodadSets, root.DoodadSets)
	writeNames(cw, TagModelNames, root.ModelNames)
	writeTable(cw, TagDoodadPlacements, root.DoodadPlacements)
	writeTable(cw, TagFogs, root.Fogs)
	if len(root.ConvexPlanes) > 0 {
		writeTable(cw, TagConvexPlanes, root.ConvexPlanes)
	}

	return cw.err
}

// ReadRoot reads a root file stream. Chunks may appear in any order; unknown
// tags are handed to the OnUnknownChunk option and skipped.
// The returned root has no Groups; use ReadMap to load them as well.
func ReadRoot(r io.Reader, opts ...ReadOption) (*Root, error) {
	o := newReadOptions(opts)
	cr := NewChunkReader(r)
	cr.SetMaxSize(o.maxSize)

	root := &Root{}
	for {
		c, err := cr.Next()
		if err == io.EOF {
			return root, nil
		}
		if err != nil {
			return nil, err
		}
		if err := root.decodeChunk(c, o); err != nil {
			return nil, err
		}
	}
}

func (r *Root) decodeChunk(c Chunk, o readOptions) error {
	var err error
	switch c.Tag {
	case TagVersion:
		r.Version, err = decodeVersion(c)
	case TagHeader:
		err = decodeRecord(c, &r.Header)
	case TagTextureNames:
		r.TextureNames = DecodeStringTable(c.Data)
	case TagMaterials:
		r.Materials, err = decodeTable[Material](c)
	case TagGroupNames:
		r.GroupNames = DecodeStringTable(c.Data)
	case TagGroupInfos:
		var infos []diskGroupInfo
		if infos, err = decodeTable[diskGroupInfo](c); err == nil {
			r.GroupInfos = nil
			for _, gi := range infos {
				r.GroupInfos = append(r.GroupInfos, GroupInfo{
					Flags:  gi.Flags,
					Bounds: gi.Bounds,
					Name:   nameRefFromDisk(gi.Name),
				})
			}
		}
	case TagSkybox:
		r.Skybox = string(firstString(c.Data))
	case TagPortals:
		r.Portals, err = decodeTable[Portal](c)
	case TagPortalInfos:
		r.PortalInfos, err = decodeTable[PortalInfo](c)
	case TagPortalRefs:
		r.PortalRefs, err = decodeTable[PortalRef](c)
	case TagVisibleVertices:
		r.VisibleVertices, err = decodeTable[math.Vec3](c)
	case TagVisibleBlocks:
		r.VisibleBlocks, err = decodeTable[VisibleBlock](c)
	case TagLights:
		r.Lights, err = decodeTable[Light](c)
	case TagDoodadSets:
		r.DoodadSets, err = decodeTable[DoodadSet](c)
	case TagModelNames:
		r.ModelNames = DecodeStringTable(c.Data)
	case TagDoodadPlacements:
		r.DoodadPlacements, err = decodeTable[DoodadPlacement](c)
	case TagFogs:
		r.Fogs, err = decodeTable[Fog](c)
	case TagConvexPlanes:
		r.ConvexPlanes, err = decodeTable[Plane](c)
	default:
		o.unknown(c)
	}
	return err
}

func decodeVersion(c Chunk) (uint32, error) {
	if len(c.Data) != 4 {
		return 0, fmt.Errorf("%w: %s payload is %d bytes, want 4", ErrMalformedChunk, c.Tag, len(c.Data))
	}
	return binary.LittleEndian.Uint32(c.Data), nil
}

func firstString(data []byte) []byte {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return data[:i]
	}
	return data
}

// ParseRoot parses a root file held in memory.
func ParseRoot(data []byte, opts ...ReadOption) (*Root, error) {
	return ReadRoot(bytes.NewReader(data), opts...)
}

// ParseRootFile reads a root file from disk.
func ParseRootFile(path string, opts ...ReadOption) (*Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening root file: %w", err)
	}
	defer f.Close()
	return ReadRoot(bufio.NewReader(f), opts...)
}
