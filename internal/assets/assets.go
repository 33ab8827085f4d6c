// Package assets mounts several s3d archives behind one lookup with an
// in-memory cache of inflated entries.
package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Faultbox/wmoforge/pkg/encoding"
	"github.com/Faultbox/wmoforge/pkg/mesh"
	"github.com/Faultbox/wmoforge/pkg/s3d"
)

// ErrNotFound is returned when no mounted archive holds an entry.
var ErrNotFound = errors.New("asset not found")

// Manager handles entry loading from mounted archives.
type Manager struct {
	archives []*s3d.Archive
	cache    *Cache
	mu       sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddArchive mounts an archive.
// Archives are searched in reverse order (last added = highest priority).
func (m *Manager) AddArchive(path string) error {
	archive, err := s3d.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	m.mu.Lock()
	m.archives = append(m.archives, archive)
	m.mu.Unlock()

	return nil
}

// Load returns the inflated entry from the highest-priority archive that
// holds it. Names are matched case-insensitively.
func (m *Manager) Load(name string) ([]byte, error) {
	key := encoding.NormalizeAssetPath(name)
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.archives) - 1; i >= 0; i-- {
		if !m.archives[i].Contains(key) {
			continue
		}
		data, err := m.archives[i].Read(key)
		if err != nil {
			return nil, err
		}
		m.cache.Set(key, data)
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Close closes all archives.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, archive := range m.archives {
		archive.Close()
	}
	m.archives = nil
	m.cache.Clear()
}

// Stats returns cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// MeshLoader decodes zone meshes from the mounted archives.
type MeshLoader struct {
	Assets *Manager
	// Entry is the entry to decode; "%s" is replaced by the zone name.
	// Defaults to "%s.yaml".
	Entry string
	// Decoder defaults to mesh.DecodeYAML.
	Decoder mesh.Decoder
}

// Load implements mesh.Loader.
func (l MeshLoader) Load(ctx context.Context, name string) (*mesh.Mesh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := l.Entry
	if entry == "" {
		entry = "%s.yaml"
	}
	data, err := l.Assets.Load(strings.ReplaceAll(entry, "%s", name))
	if err != nil {
		return nil, err
	}

	decode := l.Decoder
	if decode == nil {
		decode = mesh.DecodeYAML
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

// Cache is a simple in-memory cache for loaded entries.
type Cache struct {
	data map[string][]byte
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
