package s3d

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"github.com/Faultbox/wmoforge/pkg/encoding"
)

// blockSize is the largest inflated block the writer emits.
const blockSize = 8192

var crcTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// NameCRC returns the directory checksum of an entry name: a non-reflected
// CRC-32 over the lower-cased name and its terminating NUL.
func NameCRC(name string) uint32 {
	var crc uint32
	data := append([]byte(encoding.NormalizeAssetPath(name)), 0)
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

type pendingFile struct {
	name string
	data []byte
}

// Writer assembles an archive in memory.
type Writer struct {
	files []pendingFile
}

// NewWriter returns an empty archive writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Add queues an entry. Entries are written in the order they were added.
func (w *Writer) Add(name string, data []byte) {
	w.files = append(w.files, pendingFile{name: name, data: data})
}

func writeBlocks(buf *bytes.Buffer, data []byte) error {
	for start := 0; start < len(data); start += blockSize {
		end := min(start+blockSize, len(data))

		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		if _, err := zw.Write(data[start:end]); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}

		binary.Write(buf, binary.LittleEndian, uint32(z.Len()))
		binary.Write(buf, binary.LittleEndian, uint32(end-start))
		buf.Write(z.Bytes())
	}
	return nil
}

// WriteTo encodes the archive and writes it to out in one call.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.Write(make([]byte, headerSize))

	type dirEntry struct {
		CRC, Offset, Size uint32
	}
	dir := make([]dirEntry, 0, len(w.files)+1)

	var names bytes.Buffer
	binary.Write(&names, binary.LittleEndian, uint32(len(w.files)))

	for _, f := range w.files {
		dir = append(dir, dirEntry{CRC: NameCRC(f.name), Offset: uint32(buf.Len()), Size: uint32(len(f.data))})
		if err := writeBlocks(&buf, f.data); err != nil {
			return 0, err
		}

		encoded := encoding.EncodeLegacy(f.name)
		binary.Write(&names, binary.LittleEndian, uint32(len(encoded)+1))
		names.Write(encoded)
		names.WriteByte(0)
	}

	dir = append(dir, dirEntry{CRC: nameDirectoryCRC, Offset: uint32(buf.Len()), Size: uint32(names.Len())})
	if err := writeBlocks(&buf, names.Bytes()); err != nil {
		return 0, err
	}

	dirOffset := uint32(buf.Len())
	binary.Write(&buf, binary.LittleEndian, uint32(len(dir)))
	binary.Write(&buf, binary.LittleEndian, dir)

	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[0:], dirOffset)
	copy(data[4:8], pfsMagic)
	binary.LittleEndian.PutUint32(data[8:], DefaultVersion)

	n, err := out.Write(data)
	return int64(n), err
}
