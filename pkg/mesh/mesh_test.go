package mesh

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/wmoforge/pkg/math"
	"github.com/Faultbox/wmoforge/pkg/s3d"
)

func quad() *Mesh {
	return &Mesh{
		Name: "quad",
		Vertices: []Vertex{
			{X: 0, Y: 0, Z: 0, U: 0, V: 0},
			{X: 1, Y: 0, Z: 0, U: 1, V: 0},
			{X: 1, Y: 1, Z: 0, U: 1, V: 1},
			{X: 0, Y: 1, Z: 0, U: 0, V: 1},
		},
		Faces: []Face{{V1: 0, V2: 1, V3: 2}, {V1: 0, V2: 2, V3: 3}},
	}
}

const quadYAML = `name: quad
vertices:
  - {x: 0, y: 0, z: 0, u: 0, v: 0}
  - {x: 1, y: 0, z: 0, u: 1, v: 0}
  - {x: 1, y: 1, z: 0, u: 1, v: 1}
  - {x: 0, y: 1, z: 0, u: 0, v: 1}
faces:
  - {v1: 0, v2: 1, v3: 2}
  - {v1: 0, v2: 2, v3: 3}
`

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		faces   []Face
		wantErr bool
	}{
		{"in range", []Face{{V1: 0, V2: 1, V3: 3}}, false},
		{"last index", []Face{{V1: 3, V2: 3, V3: 3}}, false},
		{"one past end", []Face{{V1: 0, V2: 1, V3: 4}}, true},
		{"no faces", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := quad()
			m.Faces = tt.faces
			err := m.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrFaceIndexOutOfRange), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmptyMeshWithFaces(t *testing.T) {
	m := &Mesh{Faces: []Face{{}}}
	assert.ErrorIs(t, m.Validate(), ErrFaceIndexOutOfRange)
}

func TestBounds(t *testing.T) {
	b := quad().Bounds()
	assert.Equal(t, math.BoundingBox{Max: math.Vec3{X: 1, Y: 1}}, b)
	assert.True(t, (&Mesh{}).Bounds().IsEmpty())
}

func TestDecodeYAML(t *testing.T) {
	m, err := DecodeYAML([]byte(quadYAML))
	require.NoError(t, err)
	assert.Equal(t, quad(), m)

	_, err = DecodeYAML([]byte("vertices: {not: a list"))
	assert.Error(t, err)
}

func TestEncodeYAMLRoundTrip(t *testing.T) {
	data, err := EncodeYAML(quad())
	require.NoError(t, err)
	m, err := DecodeYAML(data)
	require.NoError(t, err)
	assert.Equal(t, quad(), m)
}

func TestYAMLLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.yaml"), []byte(quadYAML), 0o644))

	m, err := YAMLLoader{Dir: dir}.Load(context.Background(), "quad")
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 4)
	assert.Len(t, m.Faces, 2)

	_, err = YAMLLoader{Dir: dir}.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLLoaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := YAMLLoader{Dir: t.TempDir()}.Load(ctx, "quad")
	assert.ErrorIs(t, err, context.Canceled)
}

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	w := s3d.NewWriter()
	for name, content := range files {
		w.Add(name, []byte(content))
	}
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestArchiveLoader(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, filepath.Join(dir, "qeynos2.s3d"), map[string]string{
		"qeynos2.yaml": quadYAML,
		"brick.bmp":    "BM",
	})

	m, err := ArchiveLoader{Dir: dir}.Load(context.Background(), "qeynos2")
	require.NoError(t, err)
	assert.Equal(t, "quad", m.Name)
	assert.Len(t, m.Faces, 2)
}

func TestArchiveLoaderCustomDecoder(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, filepath.Join(dir, "zone.s3d"), map[string]string{"zone.wld": "raw"})

	var seen string
	loader := ArchiveLoader{
		Dir:   dir,
		Entry: "%s.wld",
		Decoder: func(data []byte) (*Mesh, error) {
			seen = string(data)
			return quad(), nil
		},
	}
	_, err := loader.Load(context.Background(), "zone")
	require.NoError(t, err)
	assert.Equal(t, "raw", seen)
}

func TestArchiveLoaderMissingEntry(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, filepath.Join(dir, "zone.s3d"), map[string]string{"other.yaml": quadYAML})

	_, err := ArchiveLoader{Dir: dir}.Load(context.Background(), "zone")
	assert.ErrorIs(t, err, s3d.ErrNotFound)
}
