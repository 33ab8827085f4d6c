package s3d

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// makeArchive builds an in-memory archive from name/content pairs.
func makeArchive(t *testing.T, files ...string) []byte {
	t.Helper()
	w := NewWriter()
	for i := 0; i+1 < len(files); i += 2 {
		w.Add(files[i], []byte(files[i+1]))
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

func openBytes(t *testing.T, data []byte) *Archive {
	t.Helper()
	a, err := OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	return a
}

func TestOpenReaderList(t *testing.T) {
	a := openBytes(t, makeArchive(t,
		"qeynos2.wld", "fragments",
		"Objects.WLD", "more fragments",
		"brick.bmp", "BM",
	))

	got := a.List()
	want := []string{"brick.bmp", "objects.wld", "qeynos2.wld"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if a.Version() != DefaultVersion {
		t.Errorf("Version() = %#x", a.Version())
	}
}

func TestContains(t *testing.T) {
	a := openBytes(t, makeArchive(t, "Zone/Qeynos2.wld", "x"))

	tests := []struct {
		name string
		want bool
	}{
		{"zone/qeynos2.wld", true},
		{"ZONE\\QEYNOS2.WLD", true},
		{"zone/other.wld", false},
	}
	for _, tt := range tests {
		if got := a.Contains(tt.name); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRead(t *testing.T) {
	large := bytes.Repeat([]byte("0123456789abcdef"), 2000)
	w := NewWriter()
	w.Add("small.txt", []byte("Hello, PFS!"))
	w.Add("large.bin", large)
	w.Add("empty.txt", nil)

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	a := openBytes(t, buf.Bytes())

	got, err := a.Read("SMALL.TXT")
	if err != nil {
		t.Fatalf("Read small: %v", err)
	}
	if string(got) != "Hello, PFS!" {
		t.Errorf("small content = %q", got)
	}

	got, err = a.Read("large.bin")
	if err != nil {
		t.Fatalf("Read large: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Errorf("large content differs: %d bytes, want %d", len(got), len(large))
	}

	got, err = a.Read("empty.txt")
	if err != nil || len(got) != 0 {
		t.Errorf("Read empty = %v, %v", got, err)
	}

	e, err := a.Stat("large.bin")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if e.Size != uint32(len(large)) || e.CRC != NameCRC("large.bin") {
		t.Errorf("Stat = %+v", e)
	}
}

func TestReadNotFound(t *testing.T) {
	a := openBytes(t, makeArchive(t, "a.txt", "a"))
	if _, err := a.Read("b.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := a.Stat("b.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from Stat, got %v", err)
	}
}

func TestOpenReaderErrors(t *testing.T) {
	good := makeArchive(t, "a.txt", "a")

	badMagic := append([]byte(nil), good...)
	copy(badMagic[4:8], "NOPE")

	badDir := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(badDir[0:], uint32(len(good)+100))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", good[:6], ErrTruncated},
		{"bad magic", badMagic, ErrInvalidMagic},
		{"directory past end", badDir, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenReader(bytes.NewReader(tt.data), int64(len(tt.data)))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEntryTooLarge(t *testing.T) {
	a := openBytes(t, makeArchive(t, "a.txt", "a"))
	a.entries["a.txt"].Size = MaxEntrySize + 1
	if _, err := a.Read("a.txt"); !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("expected ErrEntryTooLarge, got %v", err)
	}
}

func TestNameCRC(t *testing.T) {
	if NameCRC("a.wld") == NameCRC("b.wld") {
		t.Error("different names should not share a checksum")
	}
	if NameCRC("A.WLD") != NameCRC("a.wld") {
		t.Error("checksum should ignore case")
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zone.s3d")
	if err := os.WriteFile(path, makeArchive(t, "zone.yaml", "name: zone"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	data, err := a.Read("zone.yaml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "name: zone" {
		t.Errorf("content = %q", data)
	}
}
