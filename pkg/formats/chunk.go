package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Chunk envelope errors.
var (
	ErrTruncatedChunk = errors.New("truncated chunk")
	ErrChunkTooLarge  = errors.New("chunk exceeds size limit")
	ErrMalformedChunk = errors.New("malformed chunk payload")
	ErrInvalidTag     = errors.New("chunk tag must be 4 bytes")
)

// DefaultMaxChunkSize caps the payload length a ChunkReader accepts.
const DefaultMaxChunkSize = 256 << 20

// chunkHeaderSize is the tag plus the length field.
const chunkHeaderSize = 8

// ChunkTag is the logical four character name of a chunk, e.g. "MVER".
// On disk the bytes appear in reverse order.
type ChunkTag string

// Root chunk tags.
const (
	TagVersion          ChunkTag = "MVER"
	TagHeader           ChunkTag = "MOHD"
	TagTextureNames     ChunkTag = "MOTX"
	TagMaterials        ChunkTag = "MOMT"
	TagGroupNames       ChunkTag = "MOGN"
	TagGroupInfos       ChunkTag = "MOGI"
	TagSkybox           ChunkTag = "MOSB"
	TagPortals          ChunkTag = "MOPV"
	TagPortalInfos      ChunkTag = "MOPT"
	TagPortalRefs       ChunkTag = "MOPR"
	TagVisibleVertices  ChunkTag = "MOVV"
	TagVisibleBlocks    ChunkTag = "MOVB"
	TagLights           ChunkTag = "MOLT"
	TagDoodadSets       ChunkTag = "MODS"
	TagModelNames       ChunkTag = "MODN"
	TagDoodadPlacements ChunkTag = "MODD"
	TagFogs             ChunkTag = "MFOG"
	TagConvexPlanes     ChunkTag = "MCVP"
)

// Group chunk tags.
const (
	TagGroupHeader   ChunkTag = "MOGP"
	TagMaterialInfos ChunkTag = "MOPY"
	TagTriangles     ChunkTag = "MOVI"
	TagVertices      ChunkTag = "MOVT"
	TagNormals       ChunkTag = "MONR"
	TagTexCoords     ChunkTag = "MOTV"
	TagBatches       ChunkTag = "MOBA"
	TagLightRefs     ChunkTag = "MOLR"
	TagDoodadRefs    ChunkTag = "MODR"
	TagVertexColors  ChunkTag = "MOCV"
	TagLiquid        ChunkTag = "MLIQ"
)

// diskBytes returns the tag in on-disk (reversed) order.
func (t ChunkTag) diskBytes() ([4]byte, error) {
	var b [4]byte
	if len(t) != 4 {
		return b, fmt.Errorf("%w: %q", ErrInvalidTag, string(t))
	}
	for i := 0; i < 4; i++ {
		b[i] = t[3-i]
	}
	return b, nil
}

func tagFromDisk(b []byte) ChunkTag {
	return ChunkTag([]byte{b[3], b[2], b[1], b[0]})
}

// Chunk is one decoded envelope.
type Chunk struct {
	Tag  ChunkTag
	Data []byte
}

// WriteChunk writes a single chunk. Header and payload go out in one Write
// call, so a failing writer never receives a header without its payload.
func WriteChunk(w io.Writer, tag ChunkTag, payload []byte) error {
	disk, err := tag.diskBytes()
	if err != nil {
		return err
	}
	if uint64(len(payload)) > 0xFFFFFFFF {
		return fmt.Errorf("%w: %s payload is %d bytes", ErrChunkTooLarge, tag, len(payload))
	}

	buf := make([]byte, chunkHeaderSize+len(payload))
	copy(buf[0:4], disk[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[chunkHeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing %s chunk: %w", tag, err)
	}
	return nil
}

// ChunkReader reads chunks sequentially from a stream.
type ChunkReader struct {
	r       io.Reader
	maxSize uint32
	offset  int64
}

// NewChunkReader creates a reader with DefaultMaxChunkSize.
func NewChunkReader(r io.Reader) *ChunkReader {
	return &ChunkReader{r: r, maxSize: DefaultMaxChunkSize}
}

// SetMaxSize changes the largest payload Next will accept.
func (cr *ChunkReader) SetMaxSize(n uint32) {
	cr.maxSize = n
}

// Offset returns the stream position of the next chunk header.
func (cr *ChunkReader) Offset() int64 {
	return cr.offset
}

// Next reads the next chunk. It returns io.EOF when the stream ends exactly on
// a chunk boundary and ErrTruncatedChunk when a header or payload is cut short.
//
// The declared length is untrusted: the payload buffer grows with the bytes
// actually read instead of being allocated up front.
func (cr *ChunkReader) Next() (Chunk, error) {
	var header [chunkHeaderSize]byte
	n, err := io.ReadFull(cr.r, header[:])
	if err != nil {
		if err == io.EOF {
			return Chunk{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return Chunk{}, fmt.Errorf("%w: header has %d of %d bytes at offset %d",
				ErrTruncatedChunk, n, chunkHeaderSize, cr.offset)
		}
		return Chunk{}, fmt.Errorf("reading chunk header: %w", err)
	}

	tag := tagFromDisk(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > cr.maxSize {
		return Chunk{}, fmt.Errorf("%w: %s declares %d bytes (limit %d)",
			ErrChunkTooLarge, tag, length, cr.maxSize)
	}

	var payload bytes.Buffer
	copied, err := io.CopyN(&payload, cr.r, int64(length))
	if err != nil {
		if err == io.EOF {
			return Chunk{}, fmt.Errorf("%w: %s declares %d bytes, only %d remain",
				ErrTruncatedChunk, tag, length, copied)
		}
		return Chunk{}, fmt.Errorf("reading %s payload: %w", tag, err)
	}

	cr.offset += chunkHeaderSize + int64(length)
	data := payload.Bytes()
	if data == nil {
		data = []byte{}
	}
	return Chunk{Tag: tag, Data: data}, nil
}

// ReadChunks reads every chunk until the end of the stream.
func ReadChunks(r io.Reader) ([]Chunk, error) {
	cr := NewChunkReader(r)
	var chunks []Chunk
	for {
		c, err := cr.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
}

// decodeTable splits a payload into fixed-size records.
func decodeTable[T any](c Chunk) ([]T, error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s has no fixed record size", ErrMalformedChunk, c.Tag)
	}
	if len(c.Data)%size != 0 {
		return nil, fmt.Errorf("%w: %s payload of %d bytes is not a multiple of %d",
			ErrMalformedChunk, c.Tag, len(c.Data), size)
	}
	count := len(c.Data) / size
	if count == 0 {
		return nil, nil
	}
	out := make([]T, count)
	if err := binary.Read(bytes.NewReader(c.Data), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.Tag, err)
	}
	return out, nil
}

// decodeRecord decodes a payload holding exactly one record.
func decodeRecord[T any](c Chunk, out *T) error {
	if size := binary.Size(out); len(c.Data) != size {
		return fmt.Errorf("%w: %s payload is %d bytes, want %d",
			ErrMalformedChunk, c.Tag, len(c.Data), size)
	}
	return binary.Read(bytes.NewReader(c.Data), binary.LittleEndian, out)
}

// encodeTable packs records back to back.
func encodeTable[T any](records []T) ([]byte, error) {
	if len(records) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeRecord packs a single record.
func encodeRecord(record any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
