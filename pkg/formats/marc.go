package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Signatures, stored as little-endian uint32.
const (
	MARCMagic       uint32 = 0x4352414d // "MARC"
	MAPFMagic       uint32 = 0x4650414d // "MAPF"
	PropertiesMagic uint32 = 0x00000010
)

// Fixed block sizes.
const (
	HeaderSize         = 0x10
	PathRecordSize     = 0x40
	MaxPathLen         = PathRecordSize - 1
	PropertyRecordSize = 0x20
	MapHeaderSize      = 0x10
	Alignment          = 0x10
)

// MARC format errors.
var (
	ErrInvalidMagic      = errors.New("invalid signature")
	ErrTruncatedMARCData = errors.New("truncated MARC data")
	ErrUnterminatedPath  = errors.New("path record is not null-terminated")
	ErrCellCountMismatch = errors.New("MAPF cell count does not match width x height")
	ErrCellOutOfRange    = errors.New("cell references a tile outside the catalog")
	ErrTooManyObjects    = fmt.Errorf("catalog exceeds %d tiles", MaxObjects)
)

// MagicError reports a signature mismatch at an absolute file offset.
type MagicError struct {
	Block  string
	Offset int64
	Got    uint32
	Want   uint32
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("%s header [%x] does not match at offset [%x] (want [%x])",
		e.Block, e.Got, e.Offset, e.Want)
}

func (e *MagicError) Unwrap() error {
	return ErrInvalidMagic
}

func checkMagic(block string, got, want uint32, off int64) error {
	if got != want {
		return &MagicError{Block: block, Offset: off, Got: got, Want: want}
	}
	return nil
}

// Header is the 16-byte container header at offset 0.
type Header struct {
	Magic            uint32
	ObjectCount      uint32
	PropertiesOffset uint32
	MapOffset        uint32
}

// Encode serializes the header.
func (h Header) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0x0:], h.Magic)
	binary.LittleEndian.PutUint32(b[0x4:], h.ObjectCount)
	binary.LittleEndian.PutUint32(b[0x8:], h.PropertiesOffset)
	binary.LittleEndian.PutUint32(b[0xc:], h.MapOffset)
	return b
}

// DecodeHeader parses and validates a container header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: reading MARC header", ErrTruncatedMARCData)
	}
	h := Header{
		Magic:            binary.LittleEndian.Uint32(b[0x0:]),
		ObjectCount:      binary.LittleEndian.Uint32(b[0x4:]),
		PropertiesOffset: binary.LittleEndian.Uint32(b[0x8:]),
		MapOffset:        binary.LittleEndian.Uint32(b[0xc:]),
	}
	if err := checkMagic("MARC", h.Magic, MARCMagic, 0); err != nil {
		return Header{}, err
	}
	return h, nil
}

// EncodePath null-pads path into a record, truncating it to MaxPathLen bytes.
func EncodePath(path string) [PathRecordSize]byte {
	var b [PathRecordSize]byte
	if len(path) > MaxPathLen {
		path = path[:MaxPathLen]
	}
	copy(b[:], path)
	return b
}

// DecodePath returns the string stored in a path record. The string ends at
// the first NUL, which must occur inside the record.
func DecodePath(b []byte) (string, error) {
	if len(b) < PathRecordSize {
		return "", fmt.Errorf("%w: reading path record", ErrTruncatedMARCData)
	}
	end := bytes.IndexByte(b[:PathRecordSize], 0)
	if end < 0 {
		return "", ErrUnterminatedPath
	}
	return string(b[:end]), nil
}

// EncodeProperties serializes the property record of def. Reserved words are zero.
func EncodeProperties(def TileDef) [PropertyRecordSize]byte {
	var b [PropertyRecordSize]byte
	p := def.Properties
	binary.LittleEndian.PutUint32(b[0x00:], PropertiesMagic)
	binary.LittleEndian.PutUint32(b[0x04:], def.Frames)
	binary.LittleEndian.PutUint32(b[0x08:], uint32(p.Solidity()))
	binary.LittleEndian.PutUint32(b[0x0c:], uint32(p&PropertyDestructible))
	binary.LittleEndian.PutUint32(b[0x10:], uint32(p&PropertyCollectible))
	binary.LittleEndian.PutUint32(b[0x14:], uint32(p&PropertyGenerator))
	return b
}

// DecodeProperties parses a property record read at absolute offset off.
// A flag word counts as set when it is non-zero.
func DecodeProperties(b []byte, off int64) (frames uint32, props TileProperty, err error) {
	if len(b) < PropertyRecordSize {
		return 0, 0, fmt.Errorf("%w: reading tile properties", ErrTruncatedMARCData)
	}
	if err := checkMagic("Tile properties", binary.LittleEndian.Uint32(b), PropertiesMagic, off); err != nil {
		return 0, 0, err
	}
	frames = binary.LittleEndian.Uint32(b[0x04:])
	props = NewTileProperty(
		Solidity(binary.LittleEndian.Uint32(b[0x08:])),
		binary.LittleEndian.Uint32(b[0x0c:]) != 0,
		binary.LittleEndian.Uint32(b[0x10:]) != 0,
		binary.LittleEndian.Uint32(b[0x14:]) != 0,
	)
	return frames, props, nil
}

// MapHeader is the 16-byte MAPF block header.
type MapHeader struct {
	Width     uint32
	Height    uint32
	CellCount uint32
}

// NewMapHeader returns a header with a consistent cell count.
func NewMapHeader(width, height uint32) MapHeader {
	return MapHeader{Width: width, Height: height, CellCount: width * height}
}

// Encode serializes the MAPF header, magic included.
func (m MapHeader) Encode() [MapHeaderSize]byte {
	var b [MapHeaderSize]byte
	binary.LittleEndian.PutUint32(b[0x0:], MAPFMagic)
	binary.LittleEndian.PutUint32(b[0x4:], m.Width)
	binary.LittleEndian.PutUint32(b[0x8:], m.Height)
	binary.LittleEndian.PutUint32(b[0xc:], m.CellCount)
	return b
}

// DecodeMapHeader parses a MAPF header read at absolute offset off.
func DecodeMapHeader(b []byte, off int64) (MapHeader, error) {
	if len(b) < MapHeaderSize {
		return MapHeader{}, fmt.Errorf("%w: reading MAPF header", ErrTruncatedMARCData)
	}
	if err := checkMagic("MAPF", binary.LittleEndian.Uint32(b), MAPFMagic, off); err != nil {
		return MapHeader{}, err
	}
	m := MapHeader{
		Width:     binary.LittleEndian.Uint32(b[0x4:]),
		Height:    binary.LittleEndian.Uint32(b[0x8:]),
		CellCount: binary.LittleEndian.Uint32(b[0xc:]),
	}
	if uint64(m.CellCount) != uint64(m.Width)*uint64(m.Height) {
		return MapHeader{}, fmt.Errorf("%w: %dx%d with %d cells", ErrCellCountMismatch, m.Width, m.Height, m.CellCount)
	}
	return m, nil
}

// MARC is a fully decoded map archive.
type MARC struct {
	Objects []TileDef
	Width   uint32
	Height  uint32
	Cells   []Cell
}

// Layout returns the on-disk layout of m.
func (m *MARC) Layout() Layout {
	return NewLayout(len(m.Objects), m.Width, m.Height)
}

// GetCell returns the cell at (x, y), or CellNone when out of bounds.
func (m *MARC) GetCell(x, y int) Cell {
	if x < 0 || y < 0 || x >= int(m.Width) || y >= int(m.Height) {
		return CellNone
	}
	return m.Cells[y*int(m.Width)+x]
}

// ParseMARC parses a map archive from raw bytes.
func ParseMARC(data []byte) (*MARC, error) {
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	objects, err := r.Objects()
	if err != nil {
		return nil, err
	}

	mh := r.MapHeader()
	if end := int64(r.Header().MapOffset) + MapHeaderSize + int64(mh.CellCount); end > int64(len(data)) {
		return nil, fmt.Errorf("%w: map data ends at [%x], file is [%x] bytes", ErrTruncatedMARCData, end, len(data))
	}
	m := &MARC{
		Objects: objects,
		Width:   mh.Width,
		Height:  mh.Height,
		Cells:   make([]Cell, int(mh.CellCount)),
	}

	row := make([]byte, mh.Width)
	for y := 0; y < int(mh.Height); y++ {
		if err := r.ReadRow(y, row); err != nil {
			return nil, err
		}
		for x, c := range row {
			m.Cells[y*int(mh.Width)+x] = Cell(c)
		}
	}

	return m, nil
}

// ParseMARCFile parses a map archive from disk.
func ParseMARCFile(path string) (*MARC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MARC file: %w", err)
	}
	return ParseMARC(data)
}
