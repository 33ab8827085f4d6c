// Package encoding provides text helpers for the single-byte names stored in
// archive directories, name tables and fixed-width record fields.
package encoding

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeLegacy converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the input unchanged if conversion fails.
func DecodeLegacy(data []byte) string {
	if isASCII(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// EncodeLegacy converts a UTF-8 string to Windows-1252 bytes.
// Runes with no Windows-1252 form make the whole conversion fall back to the
// raw UTF-8 bytes.
func EncodeLegacy(s string) []byte {
	if isASCII([]byte(s)) {
		return []byte(s)
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// NormalizeAssetPath normalizes an archive entry name for case-insensitive lookup.
func NormalizeAssetPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}

// TrimNullBytes removes trailing null bytes from a byte slice.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// FixedString decodes a NUL-padded fixed-width field.
// Everything after the first NUL is ignored.
func FixedString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return DecodeLegacy(data)
}

// PutFixedString encodes s into a NUL-padded field of the given size.
// Names longer than size-1 are cut so the field stays terminated.
func PutFixedString(s string, size int) []byte {
	result := make([]byte, size)
	if size == 0 {
		return result
	}
	encoded := EncodeLegacy(s)
	if len(encoded) > size-1 {
		encoded = encoded[:size-1]
	}
	copy(result, encoded)
	return result
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
