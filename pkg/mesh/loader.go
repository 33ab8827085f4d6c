package mesh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/wmoforge/pkg/s3d"
)

// Loader produces the mesh of a named zone.
type Loader interface {
	Load(ctx context.Context, name string) (*Mesh, error)
}

// Decoder turns the raw bytes of an archive entry into a mesh.
type Decoder func(data []byte) (*Mesh, error)

// DecodeYAML decodes the YAML mesh format.
func DecodeYAML(data []byte) (*Mesh, error) {
	var m Mesh
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding mesh: %w", err)
	}
	return &m, nil
}

// EncodeYAML encodes a mesh in the format DecodeYAML reads.
func EncodeYAML(m *Mesh) ([]byte, error) {
	return yaml.Marshal(m)
}

// YAMLLoader reads <Dir>/<name>.yaml.
type YAMLLoader struct {
	Dir string
}

// Load implements Loader.
func (l YAMLLoader) Load(ctx context.Context, name string) (*Mesh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.Dir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading mesh: %w", err)
	}
	m, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = name
	}
	return m, nil
}

// ArchiveLoader reads <Dir>/<name>.s3d and decodes one of its entries.
type ArchiveLoader struct {
	Dir string
	// Entry is the entry to decode; "%s" is replaced by the zone name.
	// Defaults to "%s.yaml".
	Entry string
	// Decoder defaults to DecodeYAML.
	Decoder Decoder
}

// Load implements Loader.
func (l ArchiveLoader) Load(ctx context.Context, name string) (*Mesh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	archive, err := s3d.Open(filepath.Join(l.Dir, name+".s3d"))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	entry := l.Entry
	if entry == "" {
		entry = "%s.yaml"
	}
	data, err := archive.Read(strings.ReplaceAll(entry, "%s", name))
	if err != nil {
		return nil, err
	}

	decode := l.Decoder
	if decode == nil {
		decode = DecodeYAML
	}
	m, err := decode(data)
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = name
	}
	return m, nil
}
