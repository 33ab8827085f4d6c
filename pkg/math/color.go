package math

// Color is an 8-bit per channel color in the B, G, R, A order the WMO
// format stores it in.
type Color struct {
	B, G, R, A uint8
}

// RGBA builds a Color from channels given in the usual order.
func RGBA(r, g, b, a uint8) Color {
	return Color{B: b, G: g, R: r, A: a}
}

// Uint32 packs the color the way it is laid out in a little-endian file.
func (c Color) Uint32() uint32 {
	return uint32(c.B) | uint32(c.G)<<8 | uint32(c.R)<<16 | uint32(c.A)<<24
}

// ColorFromUint32 unpacks a little-endian BGRA value.
func ColorFromUint32(v uint32) Color {
	return Color{
		B: uint8(v),
		G: uint8(v >> 8),
		R: uint8(v >> 16),
		A: uint8(v >> 24),
	}
}
