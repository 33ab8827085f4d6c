// Package s3d reads PFS archives (.s3d), the container the source game ships
// zone geometry, textures and models in.
package s3d

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Faultbox/wmoforge/pkg/encoding"
)

// Archive errors.
var (
	ErrInvalidMagic    = errors.New("invalid PFS magic: expected 'PFS '")
	ErrTruncated       = errors.New("truncated PFS data")
	ErrNotFound        = errors.New("entry not found")
	ErrEntryTooLarge   = errors.New("entry exceeds size limit")
	ErrCorruptBlock    = errors.New("corrupt compressed block")
	ErrNoNameDirectory = errors.New("archive has no name directory")
)

const (
	pfsMagic = "PFS "

	// DefaultVersion is the archive version written by Writer.
	DefaultVersion = 0x00020000

	// nameDirectoryCRC identifies the entry holding the file names.
	nameDirectoryCRC = 0x61580AC9

	// MaxEntrySize caps the inflated size of a single entry.
	MaxEntrySize = 256 << 20

	headerSize      = 12
	dirEntrySize    = 12
	blockHeaderSize = 8
)

// Header is the fixed archive header.
type Header struct {
	DirectoryOffset uint32
	Magic           [4]byte
	Version         uint32
}

// Entry is one directory record.
type Entry struct {
	Name   string
	CRC    uint32
	Offset uint32
	Size   uint32
}

// Archive represents an opened PFS archive.
type Archive struct {
	r       io.ReaderAt
	size    int64
	closer  io.Closer
	header  Header
	entries map[string]*Entry
}

// Open opens an archive file for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	archive, err := OpenReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	archive.closer = file
	return archive, nil
}

// OpenReader reads the archive directory from r.
func OpenReader(r io.ReaderAt, size int64) (*Archive, error) {
	archive := &Archive{
		r:       r,
		size:    size,
		entries: make(map[string]*Entry),
	}

	if err := archive.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := archive.readDirectory(); err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	return archive, nil
}

// Close closes the archive file, if Open created one.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Version returns the archive version field.
func (a *Archive) Version() uint32 {
	return a.header.Version
}

func (a *Archive) readAt(off int64, n int) ([]byte, error) {
	if off < 0 || off+int64(n) > a.size {
		return nil, fmt.Errorf("%w: %d bytes at offset %d, archive is %d bytes", ErrTruncated, n, off, a.size)
	}
	buf := make([]byte, n)
	if _, err := a.r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

func (a *Archive) readHeader() error {
	data, err := a.readAt(0, headerSize)
	if err != nil {
		return err
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != pfsMagic {
		return fmt.Errorf("%w: got %q", ErrInvalidMagic, string(a.header.Magic[:]))
	}
	return nil
}

func (a *Archive) readDirectory() error {
	off := int64(a.header.DirectoryOffset)
	countBytes, err := a.readAt(off, 4)
	if err != nil {
		return err
	}
	count := binary.LittleEndian.Uint32(countBytes)
	if int64(count)*dirEntrySize > a.size {
		return fmt.Errorf("%w: directory declares %d entries", ErrTruncated, count)
	}

	table, err := a.readAt(off+4, int(count)*dirEntrySize)
	if err != nil {
		return err
	}

	var files []*Entry
	var names *Entry
	for i := 0; i < int(count); i++ {
		rec := table[i*dirEntrySize:]
		e := &Entry{
			CRC:    binary.LittleEndian.Uint32(rec[0:]),
			Offset: binary.LittleEndian.Uint32(rec[4:]),
			Size:   binary.LittleEndian.Uint32(rec[8:]),
		}
		if e.CRC == nameDirectoryCRC {
			names = e
			continue
		}
		files = append(files, e)
	}
	if names == nil {
		return ErrNoNameDirectory
	}

	data, err := a.inflate(names)
	if err != nil {
		return fmt.Errorf("name directory: %w", err)
	}
	list, err := parseNames(data)
	if err != nil {
		return err
	}

	// Names are stored in the order of the entries' data offsets.
	sort.SliceStable(files, func(i, j int) bool { return files[i].Offset < files[j].Offset })
	for i, e := range files {
		if i >= len(list) {
			break
		}
		e.Name = encoding.NormalizeAssetPath(list[i])
		a.entries[e.Name] = e
	}
	return nil
}

func parseNames(data []byte) ([]string, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: name directory", ErrTruncated)
	}
	count := binary.LittleEndian.Uint32(data)
	pos := 4
	var names []string
	for i := uint32(0); i < count; i++ {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("%w: name %d", ErrTruncated, i)
		}
		n := int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
		if n < 0 || pos+n > len(data) {
			return nil, fmt.Errorf("%w: name %d", ErrTruncated, i)
		}
		names = append(names, encoding.DecodeLegacy(encoding.TrimNullBytes(data[pos:pos+n])))
		pos += n
	}
	return names, nil
}

// inflate decompresses the blocks of an entry.
func (a *Archive) inflate(e *Entry) ([]byte, error) {
	if e.Size > MaxEntrySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, e.Size)
	}

	var out bytes.Buffer
	pos := int64(e.Offset)
	for uint32(out.Len()) < e.Size {
		hdr, err := a.readAt(pos, blockHeaderSize)
		if err != nil {
			return nil, err
		}
		deflated := binary.LittleEndian.Uint32(hdr[0:])
		inflated := binary.LittleEndian.Uint32(hdr[4:])
		if inflated == 0 {
			return nil, fmt.Errorf("%w: empty block at offset %d", ErrCorruptBlock, pos)
		}
		if uint64(out.Len())+uint64(inflated) > uint64(e.Size) {
			return nil, fmt.Errorf("%w: block inflates past entry size", ErrCorruptBlock)
		}

		compressed, err := a.readAt(pos+blockHeaderSize, int(deflated))
		if err != nil {
			return nil, err
		}
		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
		}
		n, err := io.Copy(&out, io.LimitReader(zr, int64(inflated)))
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
		}
		if n != int64(inflated) {
			return nil, fmt.Errorf("%w: block declares %d bytes, inflated %d", ErrCorruptBlock, inflated, n)
		}
		pos += blockHeaderSize + int64(deflated)
	}
	return out.Bytes(), nil
}

// List returns all entry names in sorted order.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.entries))
	for name := range a.entries {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Contains checks if an entry exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.entries[encoding.NormalizeAssetPath(name)]
	return ok
}

// Stat returns the directory record of an entry.
func (a *Archive) Stat(name string) (Entry, error) {
	e, ok := a.entries[encoding.NormalizeAssetPath(name)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return *e, nil
}

// Read returns the inflated content of an entry.
func (a *Archive) Read(name string) ([]byte, error) {
	e, ok := a.entries[encoding.NormalizeAssetPath(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	data, err := a.inflate(e)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
