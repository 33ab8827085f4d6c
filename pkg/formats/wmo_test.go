package formats

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Faultbox/wmoforge/pkg/math"
)

func makeTestRoot() *Root {
	root := NewRoot()
	root.Header.AmbientColor = math.RGBA(10, 20, 30, 255)
	root.Header.ID = 4242
	root.Header.Bounds = math.BoundingBox{Min: math.Vec3{X: -5, Y: -5, Z: 0}, Max: math.Vec3{X: 5, Y: 5, Z: 8}}
	root.TextureNames = []string{"TILE.BLP", "WALL.BLP"}
	root.Materials = []Material{{Flags: 1, Texture1: 0, DiffuseColor: 0xFF808080, RuntimeData: [4]uint32{1, 2, 3, 4}}}
	root.GroupNames = []string{"antechamber", "hall"}
	root.Skybox = "sky.mdx"
	root.Portals = []Portal{{Vertices: [4]math.Vec3{{X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1}}}}
	root.PortalInfos = []PortalInfo{{StartVertex: 0, Count: 4, Normal: math.Vec3{Z: 1}, Distance: 2.5}}
	root.PortalRefs = []PortalRef{{PortalIndex: 0, GroupIndex: 1, Side: -1}}
	root.VisibleVertices = []math.Vec3{{X: 1, Y: 2, Z: 3}}
	root.VisibleBlocks = []VisibleBlock{{FirstVertex: 0, Count: 1}}
	root.Lights = []Light{{LightType: 2, UseAtten: 1, Color: math.RGBA(255, 200, 100, 255), Intensity: 1.5, AttenEnd: 20}}
	set := DoodadSet{FirstDoodad: 0, Count: 1}
	set.SetName("Set_$DefaultGlobal")
	root.DoodadSets = []DoodadSet{set}
	root.ModelNames = []string{"TORCH.MDX"}
	root.DoodadPlacements = []DoodadPlacement{{NameIndex: 0, Position: math.Vec3{X: 3}, Rotation: math.QuatIdentity(), Scale: 1}}
	root.Fogs = []Fog{{SmallRadius: 10, LargeRadius: 50, End: 300, StartMultiplier: 0.25, Color: math.RGBA(1, 2, 3, 4)}}
	root.ConvexPlanes = []Plane{{Normal: math.Vec3{Y: 1}, Distance: -3}}

	for i := 0; i < 2; i++ {
		g := makeTestGroup()
		g.Header.GroupName = NameAt(i)
		root.AddGroup(GroupInfo{Flags: 8, Bounds: g.Header.Bounds, Name: NameAt(i)}, g)
	}
	root.SyncHeader()
	return root
}

func makeTestGroup() *Group {
	g := NewGroup()
	g.Header.Bounds = math.UnitBox()
	g.Header.Fogs = [4]uint8{1, 0, 0, 0}
	g.Header.GroupID = 7
	g.AddVertex(math.Vec3{X: 0, Y: 0, Z: 0}, math.Vec3{Z: 1})
	g.AddVertex(math.Vec3{X: 1, Y: 0, Z: 0}, math.Vec3{Z: 1})
	g.AddVertex(math.Vec3{X: 0, Y: 1, Z: 0}, math.Vec3{Z: 1})
	g.AddTriangle(Triangle{0, 1, 2}, MaterialInfo{Flags: TriangleCollision, Material: 0})
	g.TexCoords = []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	return g
}

func chunkTags(t *testing.T, data []byte) []ChunkTag {
	t.Helper()
	chunks, err := ReadChunks(bytes.NewReader(data))
	require.NoError(t, err)
	tags := make([]ChunkTag, len(chunks))
	for i, c := range chunks {
		tags[i] = c.Tag
	}
	return tags
}

func TestRootRoundTrip(t *testing.T) {
	root := makeTestRoot()
	root.Groups = nil

	var buf bytes.Buffer
	require.NoError(t, WriteRoot(&buf, root))

	got, err := ParseRoot(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, root, got)
	assert.Equal(t, "Set_$DefaultGlobal", got.DoodadSets[0].NameString())
}

func TestRootWriteOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRoot(&buf, NewRoot()))

	want := []ChunkTag{
		TagVersion, TagHeader, TagTextureNames, TagMaterials, TagGroupNames, TagGroupInfos,
		TagSkybox, TagPortals, TagPortalInfos, TagPortalRefs, TagVisibleVertices,
		TagVisibleBlocks, TagLights, TagDoodadSets, TagModelNames, TagDoodadPlacements, TagFogs,
	}
	assert.Equal(t, want, chunkTags(t, buf.Bytes()))

	buf.Reset()
	root := NewRoot()
	root.ConvexPlanes = []Plane{{Normal: math.Vec3{X: 1}}}
	require.NoError(t, WriteRoot(&buf, root))
	tags := chunkTags(t, buf.Bytes())
	assert.Equal(t, append(want, TagConvexPlanes), tags)
}

func TestRootChunkSizes(t *testing.T) {
	root := makeTestRoot()
	var buf bytes.Buffer
	require.NoError(t, WriteRoot(&buf, root))

	chunks, err := ReadChunks(&buf)
	require.NoError(t, err)

	sizes := map[ChunkTag]int{}
	for _, c := range chunks {
		sizes[c.Tag] = len(c.Data)
	}
	assert.Equal(t, 4, sizes[TagVersion])
	assert.Equal(t, 64, sizes[TagHeader])
	assert.Equal(t, 64*len(root.Materials), sizes[TagMaterials])
	assert.Equal(t, 32*len(root.GroupInfos), sizes[TagGroupInfos])
	assert.Equal(t, 48*len(root.Portals), sizes[TagPortals])
	assert.Equal(t, 20*len(root.PortalInfos), sizes[TagPortalInfos])
	assert.Equal(t, 8*len(root.PortalRefs), sizes[TagPortalRefs])
	assert.Equal(t, 8*len(root.VisibleBlocks), sizes[TagVisibleBlocks])
	assert.Equal(t, 48*len(root.Lights), sizes[TagLights])
	assert.Equal(t, 32*len(root.DoodadSets), sizes[TagDoodadSets])
	assert.Equal(t, 40*len(root.DoodadPlacements), sizes[TagDoodadPlacements])
	assert.Equal(t, 48*len(root.Fogs), sizes[TagFogs])
	assert.Equal(t, 16*len(root.ConvexPlanes), sizes[TagConvexPlanes])
}

func TestRootEmptySkyboxPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRoot(&buf, NewRoot()))

	chunks, err := ReadChunks(&buf)
	require.NoError(t, err)
	for _, c := range chunks {
		if c.Tag == TagSkybox {
			assert.Equal(t, []byte{0, 0, 0, 0}, c.Data)
			return
		}
	}
	t.Fatal("no MOSB chunk written")
}

func TestWriteRootRecomputesCounts(t *testing.T) {
	root := makeTestRoot()
	root.Header.NumLights = 99
	root.Header.NumGroups = 0

	var buf bytes.Buffer
	require.NoError(t, WriteRoot(&buf, root))
	assert.Equal(t, uint32(99), root.Header.NumLights, "WriteRoot must not modify its input")

	got, err := ParseRoot(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(len(root.Lights)), got.Header.NumLights)
	assert.Equal(t, uint32(2), got.Header.NumGroups)
	assert.Equal(t, uint32(len(root.Materials)), got.Header.NumTextures)
}

func TestWriteRootRejectsNULNames(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Root)
	}{
		{"texture", func(r *Root) { r.TextureNames = []string{"a\x00b.blp"} }},
		{"group", func(r *Root) { r.GroupNames = []string{"hall", "x\x00"} }},
		{"model", func(r *Root) { r.ModelNames = []string{"\x00"} }},
		{"skybox", func(r *Root) { r.Skybox = "sky\x00box" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := makeTestRoot()
			tt.mutate(root)

			var buf bytes.Buffer
			err := WriteRoot(&buf, root)
			assert.ErrorIs(t, err, ErrMalformedChunk)
		})
	}
}

func TestReadRootUnknownChunk(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, TagVersion, versionPayload(17)))
	require.NoError(t, WriteChunk(&buf, "ZZZZ", []byte{1, 2, 3}))
	require.NoError(t, WriteChunk(&buf, TagModelNames, []byte("a.mdx\x00")))

	var seen []ChunkTag
	root, err := ReadRoot(&buf, OnUnknownChunk(func(tag ChunkTag, size int) {
		seen = append(seen, tag)
		assert.Equal(t, 3, size)
	}))
	require.NoError(t, err)
	assert.Equal(t, []ChunkTag{"ZZZZ"}, seen)
	assert.Equal(t, uint32(17), root.Version)
	assert.Equal(t, []string{"a.mdx"}, root.ModelNames)
}

func TestReadRootAnyOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, TagModelNames, []byte("b.mdx\x00")))
	require.NoError(t, WriteChunk(&buf, TagVersion, versionPayload(17)))

	root, err := ReadRoot(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(17), root.Version)
	assert.Equal(t, []string{"b.mdx"}, root.ModelNames)
}

func TestReadRootMalformedTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, TagLights, make([]byte, 50)))

	_, err := ReadRoot(&buf)
	assert.True(t, errors.Is(err, ErrMalformedChunk), "got %v", err)
}

func TestReadRootTruncated(t *testing.T) {
	data := makeChunk("REVM", 100, make([]byte, 10))
	_, err := ParseRoot(data)
	assert.True(t, errors.Is(err, ErrTruncatedChunk), "got %v", err)
}

func TestGroupRoundTrip(t *testing.T) {
	g := makeTestGroup()
	g.Batches = []Batch{{IndexStart: 0, IndexCount: 3, VertexStart: 0, VertexEnd: 2, Material: 0}}
	g.LightRefs = []uint16{0}
	g.DoodadRefs = []uint16{0, 1}
	g.VertexColors = []math.Color{{B: 1}, {G: 1}, {R: 1}}
	g.Liquid = &Liquid{
		Header: LiquidHeader{XVerts: 2, YVerts: 2, XTiles: 1, YTiles: 1, Position: math.Vec3{Z: -1}, Material: 3},
		Data:   []byte{1, 2, 3, 4, 5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteGroup(&buf, g))

	got, err := ParseGroup(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestGroupOptionalChunksOmitted(t *testing.T) {
	g := NewGroup()
	var buf bytes.Buffer
	require.NoError(t, WriteGroup(&buf, g))

	want := []ChunkTag{TagVersion, TagGroupHeader, TagMaterialInfos, TagTriangles, TagVertices, TagNormals, TagTexCoords}
	assert.Equal(t, want, chunkTags(t, buf.Bytes()))

	chunks, err := ReadChunks(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, chunks[1].Data, 68)
}

func TestGroupHeaderAbsentNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGroup(&buf, NewGroup()))

	chunks, err := ReadChunks(&buf)
	require.NoError(t, err)
	header := chunks[1].Data
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, header[:8])
}

func TestGroupValidate(t *testing.T) {
	g := makeTestGroup()
	require.NoError(t, g.Validate())

	g.MaterialInfos = g.MaterialInfos[:0]
	assert.ErrorIs(t, g.Validate(), ErrStructuralMismatch)

	g = makeTestGroup()
	g.Normals = g.Normals[:1]
	assert.ErrorIs(t, g.Validate(), ErrStructuralMismatch)

	g = makeTestGroup()
	g.TexCoords = nil
	assert.NoError(t, g.Validate(), "texture coordinates are optional")
}

func TestRootValidate(t *testing.T) {
	root := makeTestRoot()
	require.NoError(t, root.Validate())

	root.Groups = root.Groups[:1]
	assert.ErrorIs(t, root.Validate(), ErrStructuralMismatch)

	root = makeTestRoot()
	root.Header.NumGroups = 5
	assert.ErrorIs(t, root.Validate(), ErrStructuralMismatch)
}

func TestMapFileNames(t *testing.T) {
	assert.Equal(t, "qeynos2.wmo", RootFileName("qeynos2"))
	assert.Equal(t, "qeynos2_000.wmo", GroupFileName("qeynos2", 0))
	assert.Equal(t, "qeynos2_012.wmo", GroupFileName("qeynos2", 12))
}

func TestWriteReadMap(t *testing.T) {
	dir := t.TempDir()
	root := makeTestRoot()

	require.NoError(t, WriteMap(dir, "arena", root))
	for _, name := range []string{"arena.wmo", "arena_000.wmo", "arena_001.wmo"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temporary files should remain")

	got, err := ReadMap(dir, "arena")
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestWriteMapRejectsGroupMismatch(t *testing.T) {
	dir := t.TempDir()
	root := makeTestRoot()
	root.Groups = append(root.Groups, NewGroup())

	err := WriteMap(dir, "broken", root)
	assert.ErrorIs(t, err, ErrStructuralMismatch)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestReadMapMissingGroup(t *testing.T) {
	dir := t.TempDir()
	root := makeTestRoot()
	require.NoError(t, WriteMap(dir, "arena", root))
	require.NoError(t, os.Remove(filepath.Join(dir, "arena_001.wmo")))

	_, err := ReadMap(dir, "arena")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func drawVec3(t *rapid.T, label string) math.Vec3 {
	f := rapid.Float32Range(-1e5, 1e5)
	return math.Vec3{X: f.Draw(t, label+".x"), Y: f.Draw(t, label+".y"), Z: f.Draw(t, label+".z")}
}

func drawNames(t *rapid.T, label string) []string {
	names := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9_.\\]{0,16}`), 0, 5).Draw(t, label)
	if len(names) == 0 {
		return nil
	}
	return names
}

func drawRoot(t *rapid.T) *Root {
	root := NewRoot()
	root.Version = rapid.Uint32().Draw(t, "version")
	root.Header.ID = rapid.Uint32().Draw(t, "id")
	root.Header.AmbientColor = math.ColorFromUint32(rapid.Uint32().Draw(t, "ambient"))
	root.Header.Bounds = math.BoundingBox{Min: drawVec3(t, "min"), Max: drawVec3(t, "max")}
	root.TextureNames = drawNames(t, "textures")
	root.GroupNames = drawNames(t, "groupNames")
	root.ModelNames = drawNames(t, "models")
	root.Skybox = rapid.StringMatching(`[a-z.]{0,12}`).Draw(t, "skybox")

	for i, n := 0, rapid.IntRange(0, 3).Draw(t, "materials"); i < n; i++ {
		root.Materials = append(root.Materials, Material{
			Flags:    rapid.Uint32().Draw(t, "flags"),
			Shader:   rapid.Uint32().Draw(t, "shader"),
			Texture1: rapid.Uint32().Draw(t, "tex1"),
			Flags2:   rapid.Uint32().Draw(t, "flags2"),
		})
	}
	for i, n := 0, rapid.IntRange(0, 3).Draw(t, "groups"); i < n; i++ {
		name := NoName
		if rapid.Bool().Draw(t, "named") {
			name = NameAt(rapid.IntRange(0, 1000).Draw(t, "nameIndex"))
		}
		root.GroupInfos = append(root.GroupInfos, GroupInfo{
			Flags:  rapid.Uint32().Draw(t, "groupFlags"),
			Bounds: math.BoundingBox{Min: drawVec3(t, "gmin"), Max: drawVec3(t, "gmax")},
			Name:   name,
		})
	}
	for i, n := 0, rapid.IntRange(0, 3).Draw(t, "lights"); i < n; i++ {
		root.Lights = append(root.Lights, Light{
			LightType: rapid.Uint8().Draw(t, "lightType"),
			Position:  drawVec3(t, "lightPos"),
			Intensity: rapid.Float32Range(0, 10).Draw(t, "intensity"),
		})
	}
	for i, n := 0, rapid.IntRange(0, 3).Draw(t, "blocks"); i < n; i++ {
		root.VisibleBlocks = append(root.VisibleBlocks, VisibleBlock{
			FirstVertex: rapid.Uint16().Draw(t, "first"),
			Count:       rapid.Uint16().Draw(t, "count"),
		})
	}
	for i, n := 0, rapid.IntRange(0, 3).Draw(t, "doodads"); i < n; i++ {
		root.DoodadPlacements = append(root.DoodadPlacements, DoodadPlacement{
			NameIndex: rapid.Uint32().Draw(t, "nameIndex"),
			Position:  drawVec3(t, "doodadPos"),
			Rotation:  math.QuatIdentity(),
			Scale:     rapid.Float32Range(0.1, 10).Draw(t, "scale"),
		})
	}
	for i, n := 0, rapid.IntRange(0, 2).Draw(t, "planes"); i < n; i++ {
		root.ConvexPlanes = append(root.ConvexPlanes, Plane{Normal: drawVec3(t, "normal"), Distance: 1})
	}
	root.SyncHeader()
	return root
}

func TestRootRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := drawRoot(t)

		var buf bytes.Buffer
		if err := WriteRoot(&buf, root); err != nil {
			t.Fatalf("WriteRoot: %v", err)
		}
		got, err := ParseRoot(buf.Bytes())
		if err != nil {
			t.Fatalf("ParseRoot: %v", err)
		}
		if !assert.ObjectsAreEqual(root, got) {
			t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", root, got)
		}
	})
}

func TestHeaderCountsMatchTablesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := drawRoot(t)
		root.Header = RootHeader{NumGroups: rapid.Uint32().Draw(t, "staleGroups")}

		var buf bytes.Buffer
		if err := WriteRoot(&buf, root); err != nil {
			t.Fatalf("WriteRoot: %v", err)
		}
		got, err := ParseRoot(buf.Bytes())
		if err != nil {
			t.Fatalf("ParseRoot: %v", err)
		}
		if int(got.Header.NumGroups) != len(got.GroupInfos) {
			t.Fatalf("NumGroups %d with %d descriptors", got.Header.NumGroups, len(got.GroupInfos))
		}
		if int(got.Header.NumTextures) != len(got.Materials) || int(got.Header.NumModels) != len(got.ModelNames) {
			t.Fatalf("stale counts survived: %+v", got.Header)
		}
	})
}
