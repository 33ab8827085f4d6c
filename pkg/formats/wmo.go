package formats

import (
	"errors"
	"fmt"

	"github.com/Faultbox/wmoforge/pkg/encoding"
	"github.com/Faultbox/wmoforge/pkg/math"
)

// WMO model errors.
var (
	ErrStructuralMismatch = errors.New("structural mismatch")
)

// DefaultVersion is the MVER value written for new objects.
const DefaultVersion = 17

// DefaultLiquidType is the constant stored in every generated group header.
const DefaultLiquidType = 15

// RootHeader is the MOHD record.
type RootHeader struct {
	NumTextures   uint32
	NumGroups     uint32
	NumPortals    uint32
	NumLights     uint32
	NumModels     uint32
	NumDoodads    uint32
	NumDoodadSets uint32
	AmbientColor  math.Color
	ID            uint32
	Bounds        math.BoundingBox
	Reserved      uint32
}

// Material is a MOMT shading record. The fields are kept raw so unknown
// values survive a round trip.
type Material struct {
	Flags              uint32
	Shader             uint32
	BlendMode          uint32
	Texture1           uint32
	EmissiveColor      uint32
	FrameEmissiveColor uint32
	Texture2           uint32
	DiffuseColor       uint32
	GroundType         uint32
	Texture3           uint32
	Color2             uint32
	Flags2             uint32
	RuntimeData        [4]uint32
}

// GroupInfo is a MOGI group descriptor.
type GroupInfo struct {
	Flags  uint32
	Bounds math.BoundingBox
	Name   NameRef
}

type diskGroupInfo struct {
	Flags  uint32
	Bounds math.BoundingBox
	Name   int32
}

// Portal is a MOPV quad.
type Portal struct {
	Vertices [4]math.Vec3
}

// PortalInfo is a MOPT record describing a portal's vertex range and plane.
type PortalInfo struct {
	StartVertex uint16
	Count       uint16
	Normal      math.Vec3
	Distance    float32
}

// PortalRef is a MOPR record linking a portal to a group.
type PortalRef struct {
	PortalIndex uint16
	GroupIndex  uint16
	Side        int16
	Filler      uint16
}

// VisibleBlock is a MOVB entry. Only the first four bytes of the eight byte
// slot carry data.
type VisibleBlock struct {
	FirstVertex uint16
	Count       uint16
	_           [4]byte
}

// Light is a MOLT record.
type Light struct {
	LightType  uint8
	Type       uint8
	UseAtten   uint8
	Pad        uint8
	Color      math.Color
	Position   math.Vec3
	Intensity  float32
	AttenStart float32
	AttenEnd   float32
	Unknown    [4]float32
}

// DoodadSet is a MODS record.
type DoodadSet struct {
	Name        [20]byte
	FirstDoodad uint32
	Count       uint32
	Unused      uint32
}

// NameString decodes the fixed-width set name.
func (d DoodadSet) NameString() string {
	return encoding.FixedString(d.Name[:])
}

// SetName stores name in the fixed-width field.
func (d *DoodadSet) SetName(name string) {
	copy(d.Name[:], encoding.PutFixedString(name, len(d.Name)))
}

// DoodadPlacement is a MODD record.
type DoodadPlacement struct {
	NameIndex uint32
	Position  math.Vec3
	Rotation  math.Quat
	Scale     float32
	Color     math.Color
}

// Fog is a MFOG record.
type Fog struct {
	Flags           uint32
	Position        math.Vec3
	SmallRadius     float32
	LargeRadius     float32
	End             float32
	StartMultiplier float32
	Color           math.Color
	Unknown1        float32
	Unknown2        float32
	Color2          math.Color
}

// Plane is a MCVP convex volume plane.
type Plane struct {
	Normal   math.Vec3
	Distance float32
}

// Root is the map-object root file plus the groups it owns.
type Root struct {
	Version          uint32
	Header           RootHeader
	TextureNames     []string
	Materials        []Material
	GroupNames       []string
	GroupInfos       []GroupInfo
	Skybox           string
	Portals          []Portal
	PortalInfos      []PortalInfo
	PortalRefs       []PortalRef
	VisibleVertices  []math.Vec3
	VisibleBlocks    []VisibleBlock
	Lights           []Light
	DoodadSets       []DoodadSet
	ModelNames       []string
	DoodadPlacements []DoodadPlacement
	Fogs             []Fog
	ConvexPlanes     []Plane

	// Groups are stored in separate files and are not part of the root stream.
	Groups []*Group
}

// NewRoot returns an empty root at DefaultVersion.
func NewRoot() *Root {
	return &Root{Version: DefaultVersion}
}

// AddGroup appends a group together with its descriptor.
func (r *Root) AddGroup(info GroupInfo, g *Group) {
	r.GroupInfos = append(r.GroupInfos, info)
	r.Groups = append(r.Groups, g)
}

// syncedHeader returns the header with every count taken from table lengths.
func (r *Root) syncedHeader() RootHeader {
	h := r.Header
	h.NumTextures = uint32(len(r.Materials))
	h.NumGroups = uint32(len(r.GroupInfos))
	h.NumPortals = uint32(len(r.Portals))
	h.NumLights = uint32(len(r.Lights))
	h.NumModels = uint32(len(r.ModelNames))
	h.NumDoodads = uint32(len(r.DoodadPlacements))
	h.NumDoodadSets = uint32(len(r.DoodadSets))
	return h
}

// SyncHeader recomputes the header counts from the tables.
func (r *Root) SyncHeader() {
	r.Header = r.syncedHeader()
}

// Validate reports disagreements between the header group count, the
// descriptors and the owned groups. Other header counts are informational
// on read and recomputed on write.
func (r *Root) Validate() error {
	if int(r.Header.NumGroups) != len(r.GroupInfos) {
		return fmt.Errorf("%w: header declares %d groups, %d descriptors present",
			ErrStructuralMismatch, r.Header.NumGroups, len(r.GroupInfos))
	}
	return r.validateGroups()
}

func (r *Root) validateGroups() error {
	if len(r.GroupInfos) != len(r.Groups) {
		return fmt.Errorf("%w: %d group descriptors for %d groups",
			ErrStructuralMismatch, len(r.GroupInfos), len(r.Groups))
	}
	for i, g := range r.Groups {
		if g == nil {
			return fmt.Errorf("%w: group %d is nil", ErrStructuralMismatch, i)
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
	}
	return nil
}

// TriangleFlag is the flag byte of a MOPY record.
type TriangleFlag uint8

// Triangle flags.
const (
	TriangleNoCamCollide TriangleFlag = 0
	TriangleDetail       TriangleFlag = 1
	TriangleCollision    TriangleFlag = 2
	TriangleHint         TriangleFlag = 3
	TriangleRender       TriangleFlag = 4
	TriangleCollideHit   TriangleFlag = 5
)

// String returns the flag name.
func (f TriangleFlag) String() string {
	switch f {
	case TriangleNoCamCollide:
		return "NoCamCollide"
	case TriangleDetail:
		return "Detail"
	case TriangleCollision:
		return "Collision"
	case TriangleHint:
		return "Hint"
	case TriangleRender:
		return "Render"
	case TriangleCollideHit:
		return "CollideHit"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// MaterialInfo is the per-triangle MOPY record.
type MaterialInfo struct {
	Flags    TriangleFlag
	Material uint8
}

// Triangle holds three indices into the group's vertex list.
type Triangle [3]uint16

// GroupHeader is the MOGP record.
type GroupHeader struct {
	GroupName       NameRef
	DescriptiveName NameRef
	Flags           uint32
	Bounds          math.BoundingBox
	PortalStart     uint16
	PortalCount     uint16
	BatchesA        uint16
	BatchesB        uint16
	BatchesC        uint32
	Fogs            [4]uint8
	LiquidType      uint32
	GroupID         uint32
	Reserved2       uint32
	Reserved3       uint32
}

type diskGroupHeader struct {
	GroupName       int32
	DescriptiveName int32
	Flags           uint32
	Bounds          math.BoundingBox
	PortalStart     uint16
	PortalCount     uint16
	BatchesA        uint16
	BatchesB        uint16
	BatchesC        uint32
	Fogs            [4]uint8
	LiquidType      uint32
	GroupID         uint32
	Reserved2       uint32
	Reserved3       uint32
}

// Batch is a MOBA render batch.
type Batch struct {
	BoundsRaw   [6]int16
	IndexStart  uint32
	IndexCount  uint16
	VertexStart uint16
	VertexEnd   uint16
	Flags       uint8
	Material    uint8
}

// LiquidHeader is the fixed part of a MLIQ chunk.
type LiquidHeader struct {
	XVerts   uint32
	YVerts   uint32
	XTiles   uint32
	YTiles   uint32
	Position math.Vec3
	Material uint16
}

// Liquid is a MLIQ chunk: a header plus the vertex and tile data kept as is.
type Liquid struct {
	Header LiquidHeader
	Data   []byte
}

// Group is one group file.
type Group struct {
	Version       uint32
	Header        GroupHeader
	MaterialInfos []MaterialInfo
	Triangles     []Triangle
	Vertices      []math.Vec3
	Normals       []math.Vec3
	TexCoords     []math.Vec2
	Batches       []Batch
	LightRefs     []uint16
	DoodadRefs    []uint16
	VertexColors  []math.Color
	Liquid        *Liquid
}

// NewGroup returns an empty group at DefaultVersion with both name
// references absent.
func NewGroup() *Group {
	return &Group{
		Version: DefaultVersion,
		Header: GroupHeader{
			GroupName:       NoName,
			DescriptiveName: NoName,
			LiquidType:      DefaultLiquidType,
		},
	}
}

// Validate checks the per-triangle and per-vertex table lengths.
// Texture coordinates may be shorter than the vertex list.
func (g *Group) Validate() error {
	if len(g.MaterialInfos) != len(g.Triangles) {
		return fmt.Errorf("%w: %d material infos for %d triangles",
			ErrStructuralMismatch, len(g.MaterialInfos), len(g.Triangles))
	}
	if len(g.Vertices) != len(g.Normals) {
		return fmt.Errorf("%w: %d vertices with %d normals",
			ErrStructuralMismatch, len(g.Vertices), len(g.Normals))
	}
	return nil
}

// AddTriangle appends a triangle and its material info.
func (g *Group) AddTriangle(t Triangle, info MaterialInfo) {
	g.Triangles = append(g.Triangles, t)
	g.MaterialInfos = append(g.MaterialInfos, info)
}

// AddVertex appends a position and its normal.
func (g *Group) AddVertex(position, normal math.Vec3) {
	g.Vertices = append(g.Vertices, position)
	g.Normals = append(g.Normals, normal)
}
