package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/text/language"
)

// DBC format errors.
var (
	ErrInvalidDBCMagic = errors.New("invalid DBC magic: expected 'WDBC'")
	ErrTruncatedDBC    = errors.New("truncated DBC data")
	ErrInvalidDBCField = errors.New("DBC field out of range")
	ErrUnknownLocale   = errors.New("unknown locale")
)

const (
	dbcMagic      = "WDBC"
	dbcHeaderSize = 20
)

// LocaleSlots is the number of columns a localized string occupies.
const LocaleSlots = 17

// Locale selects one column of a localized string field.
type Locale int

// Locales in column order.
const (
	LocaleEnUS Locale = iota
	LocaleKoKR
	LocaleFrFR
	LocaleDeDE
	LocaleZhCN
	LocaleZhTW
	LocaleEsES
	LocaleEsMX
	LocaleRuRU
)

var localeNames = []string{"enUS", "koKR", "frFR", "deDE", "zhCN", "zhTW", "esES", "esMX", "ruRU"}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(localeNames))
	for i, n := range localeNames {
		tags[i] = language.MustParse(n[:2] + "-" + n[2:])
	}
	return language.NewMatcher(tags)
}()

// String returns the client-style locale name, e.g. "enUS".
func (l Locale) String() string {
	if l >= 0 && int(l) < len(localeNames) {
		return localeNames[l]
	}
	return fmt.Sprintf("Locale(%d)", int(l))
}

// ParseLocale accepts client names ("deDE") and BCP 47 tags ("de-AT", "ru")
// and returns the closest supported locale.
func ParseLocale(s string) (Locale, error) {
	name := s
	if len(name) == 4 && !strings.ContainsAny(name, "-_") {
		name = name[:2] + "-" + name[2:]
	}
	tag, err := language.Parse(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLocale, s)
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLocale, s)
	}
	return Locale(idx), nil
}

// DBCHeader is the fixed file header.
type DBCHeader struct {
	Magic           [4]byte
	NumRecords      uint32
	NumFields       uint32
	RecordSize      uint32
	StringBlockSize uint32
}

// DBC is a parsed WDBC record database.
type DBC struct {
	Header  DBCHeader
	records []byte
	strings []byte
}

// Record is one row of a DBC. Fields are 4-byte columns.
type Record struct {
	data    []byte
	strings []byte
}

// ParseDBC parses a WDBC file held in memory.
func ParseDBC(data []byte) (*DBC, error) {
	if len(data) < dbcHeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedDBC, dbcHeaderSize, len(data))
	}

	var h DBCHeader
	if err := binary.Read(bytes.NewReader(data[:dbcHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(h.Magic[:]) != dbcMagic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidDBCMagic, string(h.Magic[:]))
	}
	if uint64(h.RecordSize) < uint64(h.NumFields)*4 {
		return nil, fmt.Errorf("%w: record size %d too small for %d fields", ErrInvalidDBCField, h.RecordSize, h.NumFields)
	}
	if h.NumRecords > 0 && h.RecordSize == 0 {
		return nil, fmt.Errorf("%w: %d records of size 0", ErrInvalidDBCField, h.NumRecords)
	}

	recordBytes := uint64(h.NumRecords) * uint64(h.RecordSize)
	need := uint64(dbcHeaderSize) + recordBytes + uint64(h.StringBlockSize)
	if uint64(len(data)) < need {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedDBC, need, len(data))
	}

	body := data[dbcHeaderSize:]
	return &DBC{
		Header:  h,
		records: body[:recordBytes],
		strings: body[recordBytes : recordBytes+uint64(h.StringBlockSize)],
	}, nil
}

// ParseDBCFile reads a WDBC file from disk.
func ParseDBCFile(path string) (*DBC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseDBC(data)
}

// Len returns the number of records.
func (d *DBC) Len() int {
	return int(d.Header.NumRecords)
}

// Record returns row i.
func (d *DBC) Record(i int) Record {
	size := int(d.Header.RecordSize)
	return Record{data: d.records[i*size : (i+1)*size], strings: d.strings}
}

// Records returns every row in file order.
func (d *DBC) Records() []Record {
	out := make([]Record, d.Len())
	for i := range out {
		out[i] = d.Record(i)
	}
	return out
}

// NumFields returns the number of 4-byte columns in the record.
func (r Record) NumFields() int {
	return len(r.data) / 4
}

func (r Record) raw(field int) (uint32, error) {
	if field < 0 || (field+1)*4 > len(r.data) {
		return 0, fmt.Errorf("%w: field %d of %d", ErrInvalidDBCField, field, r.NumFields())
	}
	return binary.LittleEndian.Uint32(r.data[field*4:]), nil
}

// Uint32 reads a column as an unsigned integer.
func (r Record) Uint32(field int) (uint32, error) {
	return r.raw(field)
}

// Int32 reads a column as a signed integer.
func (r Record) Int32(field int) (int32, error) {
	v, err := r.raw(field)
	return int32(v), err
}

// Float32 reads a column as a float.
func (r Record) Float32(field int) (float32, error) {
	v, err := r.raw(field)
	return math.Float32frombits(v), err
}

// String resolves a column holding a string block offset.
// An offset with no terminator before the end of the block yields "".
func (r Record) String(field int) (string, error) {
	off, err := r.raw(field)
	if err != nil {
		return "", err
	}
	if int(off) >= len(r.strings) {
		return "", nil
	}
	tail := r.strings[off:]
	end := bytes.IndexByte(tail, 0)
	if end < 0 {
		return "", nil
	}
	return string(tail[:end]), nil
}

// Localized resolves the column of a localized string for the given locale.
// field is the first of the LocaleSlots columns.
func (r Record) Localized(field int, locale Locale) (string, error) {
	if locale < 0 || int(locale) >= LocaleSlots-1 {
		return "", fmt.Errorf("%w: locale slot %d", ErrInvalidDBCField, int(locale))
	}
	return r.String(field + int(locale))
}

// DBCBuilder assembles a WDBC file. Every record has the same field count.
type DBCBuilder struct {
	fields  int
	records [][]uint32
	strings []byte
	offsets map[string]uint32
}

// NewDBCBuilder starts a file whose records have the given number of fields.
func NewDBCBuilder(fields int) *DBCBuilder {
	return &DBCBuilder{
		fields:  fields,
		strings: []byte{0},
		offsets: map[string]uint32{"": 0},
	}
}

// AddString stores s in the string block and returns its offset.
func (b *DBCBuilder) AddString(s string) uint32 {
	if off, ok := b.offsets[s]; ok {
		return off
	}
	off := uint32(len(b.strings))
	b.strings = append(b.strings, s...)
	b.strings = append(b.strings, 0)
	b.offsets[s] = off
	return off
}

// AddRecord appends a record. Missing trailing fields are zero.
func (b *DBCBuilder) AddRecord(values ...uint32) error {
	if len(values) > b.fields {
		return fmt.Errorf("%w: %d values for %d fields", ErrInvalidDBCField, len(values), b.fields)
	}
	rec := make([]uint32, b.fields)
	copy(rec, values)
	b.records = append(b.records, rec)
	return nil
}

// Bytes encodes the file. It fails when the record layout or string block
// does not fit the 32-bit header fields.
func (b *DBCBuilder) Bytes() ([]byte, error) {
	recordSize := uint64(b.fields) * 4
	if b.fields < 0 || recordSize > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d fields do not fit a record", ErrInvalidDBCField, b.fields)
	}
	if uint64(len(b.strings)) > math.MaxUint32 || uint64(len(b.records)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d records with %d string bytes", ErrInvalidDBCField, len(b.records), len(b.strings))
	}

	var buf bytes.Buffer
	h := DBCHeader{
		NumRecords:      uint32(len(b.records)),
		NumFields:       uint32(b.fields),
		RecordSize:      uint32(recordSize),
		StringBlockSize: uint32(len(b.strings)),
	}
	copy(h.Magic[:], dbcMagic)
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for i, rec := range b.records {
		if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
			return nil, fmt.Errorf("writing record %d: %w", i, err)
		}
	}
	buf.Write(b.strings)
	return buf.Bytes(), nil
}

// WMOAreaTable field layout.
const (
	wmoAreaFieldID        = 0
	wmoAreaFieldRootID    = 1
	wmoAreaFieldNameSetID = 2
	wmoAreaFieldGroupID   = 3
	wmoAreaFieldName      = 11

	// WMOAreaTableFields is the column count of a WMOAreaTable record.
	WMOAreaTableFields = wmoAreaFieldName + LocaleSlots
)

// WMOArea is a row of WMOAreaTable.dbc.
type WMOArea struct {
	ID        uint32
	RootID    int32
	NameSetID int32
	GroupID   int32
	Name      string
}

// WMOAreaTable decodes every row of a WMOAreaTable database.
func WMOAreaTable(d *DBC, locale Locale) ([]WMOArea, error) {
	out := make([]WMOArea, 0, d.Len())
	for i, r := range d.Records() {
		var a WMOArea
		var err error
		if a.ID, err = r.Uint32(wmoAreaFieldID); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		a.RootID, _ = r.Int32(wmoAreaFieldRootID)
		a.NameSetID, _ = r.Int32(wmoAreaFieldNameSetID)
		a.GroupID, _ = r.Int32(wmoAreaFieldGroupID)
		if a.Name, err = r.Localized(wmoAreaFieldName, locale); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// FindWMOArea returns the map-wide row (GroupID -1) whose name matches name,
// ignoring case.
func FindWMOArea(areas []WMOArea, name string) (WMOArea, bool) {
	for _, a := range areas {
		if a.GroupID == -1 && strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return WMOArea{}, false
}

// AreaTable field layout.
const (
	areaFieldID       = 0
	areaFieldMapID    = 1
	areaFieldParentID = 2
	areaFieldFlags    = 4
	areaFieldLevel    = 10
	areaFieldName     = 11
)

// Area is a row of AreaTable.dbc.
type Area struct {
	ID       uint32
	MapID    uint32
	ParentID uint32
	Flags    uint32
	Level    int32
	Name     string
}

// AreaTable decodes every row of an AreaTable database.
func AreaTable(d *DBC, locale Locale) ([]Area, error) {
	out := make([]Area, 0, d.Len())
	for i, r := range d.Records() {
		var a Area
		var err error
		if a.ID, err = r.Uint32(areaFieldID); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		a.MapID, _ = r.Uint32(areaFieldMapID)
		a.ParentID, _ = r.Uint32(areaFieldParentID)
		a.Flags, _ = r.Uint32(areaFieldFlags)
		a.Level, _ = r.Int32(areaFieldLevel)
		if a.Name, err = r.Localized(areaFieldName, locale); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Map table field layout.
const (
	mapFieldID           = 0
	mapFieldInternalName = 1
	mapFieldType         = 2
	mapFieldName         = 4
)

// MapType is the instance kind of a map.
type MapType uint32

// Map types.
const (
	MapNormal MapType = iota
	MapDungeon
	MapRaid
	MapPVPZone
	MapArena
)

// MapEntry is a row of Map.dbc.
type MapEntry struct {
	ID           uint32
	InternalName string
	Type         MapType
	Name         string
}

// MapTable decodes every row of a Map database.
func MapTable(d *DBC, locale Locale) ([]MapEntry, error) {
	out := make([]MapEntry, 0, d.Len())
	for i, r := range d.Records() {
		var m MapEntry
		var err error
		if m.ID, err = r.Uint32(mapFieldID); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if m.InternalName, err = r.String(mapFieldInternalName); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		t, _ := r.Uint32(mapFieldType)
		m.Type = MapType(t)
		if m.Name, err = r.Localized(mapFieldName, locale); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
