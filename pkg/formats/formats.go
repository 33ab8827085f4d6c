// Package formats provides readers and writers for the map-object (WMO)
// chunk container and the WDBC record database that accompanies it.
//
// A map object is one root file plus NumGroups group files. Both use the same
// chunk envelope: a byte-reversed four character tag, a little-endian uint32
// payload length and the payload itself.
package formats
