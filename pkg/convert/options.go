package convert

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/wmoforge/pkg/math"
)

// MaxGroupVertices is the most vertices a group can index with 16-bit indices.
const MaxGroupVertices = 65535

// BoundsMode selects how bounding boxes are filled in.
type BoundsMode int

// Bounds modes.
const (
	// BoundsComputed measures the transformed vertex positions.
	BoundsComputed BoundsMode = iota
	// BoundsPlaceholder writes the unit box for every bounding box.
	BoundsPlaceholder
)

// String returns the config name of the mode.
func (m BoundsMode) String() string {
	switch m {
	case BoundsComputed:
		return "computed"
	case BoundsPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("BoundsMode(%d)", int(m))
	}
}

// ParseBoundsMode parses "computed" or "placeholder".
func ParseBoundsMode(s string) (BoundsMode, error) {
	switch s {
	case "computed", "":
		return BoundsComputed, nil
	case "placeholder":
		return BoundsPlaceholder, nil
	default:
		return 0, fmt.Errorf("%w: unknown bounds mode %q", ErrInvalidOptions, s)
	}
}

// TexCoordPolicy selects what happens to source texture coordinates.
type TexCoordPolicy int

// Texture coordinate policies.
const (
	// TexCoordsDrop computes the coordinates but leaves MOTV empty.
	TexCoordsDrop TexCoordPolicy = iota
	// TexCoordsStore writes one coordinate per vertex.
	TexCoordsStore
)

// String returns the config name of the policy.
func (p TexCoordPolicy) String() string {
	switch p {
	case TexCoordsDrop:
		return "drop"
	case TexCoordsStore:
		return "store"
	default:
		return fmt.Sprintf("TexCoordPolicy(%d)", int(p))
	}
}

// ParseTexCoordPolicy parses "drop" or "store".
func ParseTexCoordPolicy(s string) (TexCoordPolicy, error) {
	switch s {
	case "drop", "":
		return TexCoordsDrop, nil
	case "store":
		return TexCoordsStore, nil
	default:
		return 0, fmt.Errorf("%w: unknown texture coordinate policy %q", ErrInvalidOptions, s)
	}
}

// ParseAxis maps an axis convention name to its transform.
// "identity" leaves positions untouched; "zup" applies (x, y, z) -> (x, z, -y).
func ParseAxis(s string) (math.Mat4, error) {
	switch s {
	case "identity", "":
		return math.Identity(), nil
	case "zup":
		return math.AxisSwapZUp(), nil
	default:
		return math.Mat4{}, fmt.Errorf("%w: unknown axis %q", ErrInvalidOptions, s)
	}
}

// Options controls a Converter.
type Options struct {
	// Axis is applied to every position and normal.
	Axis math.Mat4
	// Bounds selects computed or placeholder bounding boxes.
	Bounds BoundsMode
	// ComputeNormals averages face normals per vertex instead of writing zero normals.
	ComputeNormals bool
	// TexCoords selects whether texture coordinates reach MOTV.
	TexCoords TexCoordPolicy
	// GroupVertexLimit splits the mesh into groups of at most this many
	// vertices. Zero keeps a single group.
	GroupVertexLimit int
	// Logger receives conversion reports. Nil means no logging.
	Logger *zap.Logger
}

// DefaultOptions returns identity axis, computed bounds, zero normals,
// dropped texture coordinates and a single group.
func DefaultOptions() Options {
	return Options{
		Axis:   math.Identity(),
		Bounds: BoundsComputed,
	}
}

func (o Options) validate() error {
	if o.GroupVertexLimit != 0 && (o.GroupVertexLimit < 3 || o.GroupVertexLimit > MaxGroupVertices) {
		return fmt.Errorf("%w: group vertex limit %d outside [3, %d]", ErrInvalidOptions, o.GroupVertexLimit, MaxGroupVertices)
	}
	if o.Axis == (math.Mat4{}) {
		return fmt.Errorf("%w: axis transform is the zero matrix", ErrInvalidOptions)
	}
	return nil
}
