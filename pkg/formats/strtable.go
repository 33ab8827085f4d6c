package formats

import (
	"bytes"
	"fmt"
	"strings"
)

// DecodeStringTable splits a name-table payload into its strings.
// Every NUL terminates one entry; bytes after the last NUL are dropped.
func DecodeStringTable(data []byte) []string {
	var names []string
	for len(data) > 0 {
		i := bytes.IndexByte(data, 0)
		if i < 0 {
			break
		}
		names = append(names, string(data[:i]))
		data = data[i+1:]
	}
	return names
}

// EncodeStringTable joins names into a NUL-terminated table. A name holding
// a NUL byte would split into two entries on decode and is rejected.
func EncodeStringTable(names []string) ([]byte, error) {
	if len(names) == 0 {
		return nil, nil
	}
	size := 0
	for i, n := range names {
		if strings.IndexByte(n, 0) >= 0 {
			return nil, fmt.Errorf("%w: name %d %q contains a NUL byte", ErrMalformedChunk, i, n)
		}
		size += len(n) + 1
	}
	buf := make([]byte, 0, size)
	for _, n := range names {
		buf = append(buf, n...)
		buf = append(buf, 0)
	}
	return buf, nil
}

// NameRef is an optional index into a decoded name table.
type NameRef struct {
	Index int
	Valid bool
}

// NoName is the absent reference.
var NoName = NameRef{}

// NameAt references entry i of a name table.
func NameAt(i int) NameRef {
	return NameRef{Index: i, Valid: true}
}

// Resolve looks the reference up in names.
func (n NameRef) Resolve(names []string) (string, bool) {
	if !n.Valid || n.Index < 0 || n.Index >= len(names) {
		return "", false
	}
	return names[n.Index], true
}

func (n NameRef) disk() int32 {
	if !n.Valid {
		return -1
	}
	return int32(n.Index)
}

func nameRefFromDisk(v int32) NameRef {
	if v < 0 {
		return NoName
	}
	return NameAt(int(v))
}
