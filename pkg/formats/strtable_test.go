package formats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecodeStringTable(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []string
	}{
		{"empty", nil, nil},
		{"single", []byte("a.blp\x00"), []string{"a.blp"}},
		{"several", []byte("a\x00bc\x00\x00d\x00"), []string{"a", "bc", "", "d"}},
		{"unterminated tail dropped", []byte("a\x00tail"), []string{"a"}},
		{"only unterminated", []byte("tail"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeStringTable(tt.data))
		})
	}
}

func TestEncodeStringTable(t *testing.T) {
	empty, err := EncodeStringTable(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	data, err := EncodeStringTable([]string{"x", "", "yz"})
	require.NoError(t, err)
	assert.Equal(t, []byte("x\x00\x00yz\x00"), data)
}

func TestEncodeStringTableRejectsNUL(t *testing.T) {
	data, err := EncodeStringTable([]string{"ok.blp", "a\x00b"})
	assert.Nil(t, data)
	assert.ErrorIs(t, err, ErrMalformedChunk)
}

func TestStringTableCountMatchesTerminators(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.SampledFrom([]byte{0, 'a', 'b', '.'}), 0, 64).Draw(t, "data")
		names := DecodeStringTable(data)
		if len(names) != bytes.Count(data, []byte{0}) {
			t.Fatalf("%d names for %d terminators", len(names), bytes.Count(data, []byte{0}))
		}
	})
}

func TestStringTableRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9_.\\]{0,12}`), 1, 8).Draw(t, "names")
		data, err := EncodeStringTable(names)
		if err != nil {
			t.Fatalf("encode %q: %v", names, err)
		}
		got := DecodeStringTable(data)
		if strings.Join(got, "|") != strings.Join(names, "|") || len(got) != len(names) {
			t.Fatalf("round trip %q -> %q", names, got)
		}
	})
}

func TestNameRef(t *testing.T) {
	names := []string{"zone", "hall"}

	got, ok := NameAt(1).Resolve(names)
	assert.True(t, ok)
	assert.Equal(t, "hall", got)

	_, ok = NoName.Resolve(names)
	assert.False(t, ok)

	_, ok = NameAt(5).Resolve(names)
	assert.False(t, ok)

	assert.Equal(t, int32(-1), NoName.disk())
	assert.Equal(t, NoName, nameRefFromDisk(-1))
	assert.Equal(t, NameAt(3), nameRefFromDisk(3))
}
