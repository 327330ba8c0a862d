package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestMARC builds a MARC file by hand, without the Writer.
func createTestMARC(defs []TileDef, width, height uint32, cells []byte) []byte {
	buf := new(bytes.Buffer)
	n := uint32(len(defs))

	propsOffset := uint32(HeaderSize) + n*PathRecordSize
	mapOffset := propsOffset + n*PropertyRecordSize

	binary.Write(buf, binary.LittleEndian, MARCMagic)
	binary.Write(buf, binary.LittleEndian, n)
	binary.Write(buf, binary.LittleEndian, propsOffset)
	binary.Write(buf, binary.LittleEndian, mapOffset)

	for _, def := range defs {
		var rec [PathRecordSize]byte
		copy(rec[:], def.Path)
		buf.Write(rec[:])
	}

	for _, def := range defs {
		p := def.Properties
		binary.Write(buf, binary.LittleEndian, [8]uint32{
			PropertiesMagic,
			def.Frames,
			uint32(p & 3),
			uint32(p & PropertyDestructible),
			uint32(p & PropertyCollectible),
			uint32(p & PropertyGenerator),
			0, 0,
		})
	}

	binary.Write(buf, binary.LittleEndian, MAPFMagic)
	binary.Write(buf, binary.LittleEndian, width)
	binary.Write(buf, binary.LittleEndian, height)
	binary.Write(buf, binary.LittleEndian, width*height)
	buf.Write(cells)

	for buf.Len()%Alignment != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

var testDefs = []TileDef{
	{Path: "images/ground.png", Frames: 1, Properties: PropertySolid},
	{Path: "images/grass.png", Frames: 1, Properties: PropertySemiSolid},
	{Path: "images/coin.png", Frames: 20, Properties: PropertyAir | PropertyCollectible},
}

func TestParseMARC_ValidFile(t *testing.T) {
	cells := []byte{0, 1, 2, 0xFF, 0xFF, 2}
	data := createTestMARC(testDefs, 3, 2, cells)

	m, err := ParseMARC(data)
	if err != nil {
		t.Fatalf("ParseMARC failed: %v", err)
	}

	if m.Width != 3 || m.Height != 2 {
		t.Errorf("expected 3x2, got %dx%d", m.Width, m.Height)
	}
	if len(m.Objects) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(m.Objects))
	}
	for i, def := range testDefs {
		if m.Objects[i] != def {
			t.Errorf("object %d: expected %+v, got %+v", i, def, m.Objects[i])
		}
	}
	for i, c := range cells {
		if m.Cells[i] != Cell(c) {
			t.Errorf("cell %d: expected %d, got %d", i, c, m.Cells[i])
		}
	}
	if got := m.GetCell(0, 1); got != CellNone {
		t.Errorf("GetCell(0, 1) = %d, expected CellNone", got)
	}
	if got := m.GetCell(3, 0); got != CellNone {
		t.Errorf("out of bounds GetCell should return CellNone, got %d", got)
	}
}

func TestMARC_WriteToMatchesHandBuilt(t *testing.T) {
	cells := []byte{0, 1, 2, 0xFF, 0xFF, 2, 1}
	want := createTestMARC(testDefs, 7, 1, cells)

	m := &MARC{Objects: testDefs, Width: 7, Height: 1}
	for _, c := range cells {
		m.Cells = append(m.Cells, Cell(c))
	}

	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != int64(len(want)) {
		t.Errorf("WriteTo reported %d bytes, expected %d", n, len(want))
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("WriteTo output differs from hand-built archive")
	}
	if buf.Len()%Alignment != 0 {
		t.Errorf("archive size %d is not 16-byte aligned", buf.Len())
	}
}

func TestParseMARC_InvalidMagic(t *testing.T) {
	data := createTestMARC(testDefs, 2, 2, []byte{0, 0, 0, 0})
	copy(data, "XXXX")

	_, err := ParseMARC(data)
	var me *MagicError
	if !errors.As(err, &me) {
		t.Fatalf("expected MagicError, got %v", err)
	}
	if me.Offset != 0 || me.Block != "MARC" {
		t.Errorf("expected MARC mismatch at 0, got %s at %x", me.Block, me.Offset)
	}
	if !errors.Is(err, ErrInvalidMagic) {
		t.Error("MagicError should unwrap to ErrInvalidMagic")
	}
}

func TestParseMARC_InvalidMapMagicOffset(t *testing.T) {
	data := createTestMARC(testDefs, 2, 2, []byte{0, 0, 0, 0})
	mapOffset := NewLayout(len(testDefs), 2, 2).MapOffset()
	copy(data[mapOffset:], "MAPX")

	_, err := ParseMARC(data)
	var me *MagicError
	if !errors.As(err, &me) {
		t.Fatalf("expected MagicError, got %v", err)
	}
	if me.Offset != mapOffset {
		t.Errorf("expected offset %x, got %x", mapOffset, me.Offset)
	}
	if !strings.Contains(me.Error(), "MAPF") {
		t.Errorf("error should name the MAPF block: %v", me)
	}
}

func TestParseMARC_InvalidPropertiesMagicOffset(t *testing.T) {
	data := createTestMARC(testDefs, 2, 2, []byte{0, 0, 0, 0})
	off := NewLayout(len(testDefs), 2, 2).PropertyOffset(2)
	binary.LittleEndian.PutUint32(data[off:], 0xdeadbeef)

	_, err := ParseMARC(data)
	var me *MagicError
	if !errors.As(err, &me) {
		t.Fatalf("expected MagicError, got %v", err)
	}
	if me.Offset != off {
		t.Errorf("expected offset %x, got %x", off, me.Offset)
	}
	if me.Got != 0xdeadbeef {
		t.Errorf("expected observed value deadbeef, got %x", me.Got)
	}
}

func TestParseMARC_TruncatedData(t *testing.T) {
	if _, err := ParseMARC([]byte("MARC")); !errors.Is(err, ErrTruncatedMARCData) {
		t.Errorf("expected ErrTruncatedMARCData, got %v", err)
	}

	data := createTestMARC(testDefs, 4, 4, make([]byte, 16))
	l := NewLayout(len(testDefs), 4, 4)
	if _, err := ParseMARC(data[:l.RowOffset(2)]); !errors.Is(err, ErrTruncatedMARCData) {
		t.Errorf("expected ErrTruncatedMARCData for missing rows, got %v", err)
	}
}

func TestParseMARC_CellCountMismatch(t *testing.T) {
	data := createTestMARC(testDefs, 2, 2, []byte{0, 0, 0, 0})
	off := NewLayout(len(testDefs), 2, 2).MapOffset()
	binary.LittleEndian.PutUint32(data[off+12:], 5)

	if _, err := ParseMARC(data); !errors.Is(err, ErrCellCountMismatch) {
		t.Errorf("expected ErrCellCountMismatch, got %v", err)
	}
}

func TestParseMARCFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.map")
	if err := os.WriteFile(path, createTestMARC(testDefs, 2, 1, []byte{2, 0}), 0644); err != nil {
		t.Fatalf("failed to write test archive: %v", err)
	}

	m, err := ParseMARCFile(path)
	if err != nil {
		t.Fatalf("ParseMARCFile failed: %v", err)
	}
	if m.GetCell(0, 0) != 2 {
		t.Errorf("expected cell 2, got %d", m.GetCell(0, 0))
	}

	if _, err := ParseMARCFile(filepath.Join(t.TempDir(), "missing.map")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEncodePath(t *testing.T) {
	rec := EncodePath("images/wall.png")
	got, err := DecodePath(rec[:])
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	if got != "images/wall.png" {
		t.Errorf("expected images/wall.png, got %q", got)
	}
	for i := len("images/wall.png"); i < PathRecordSize; i++ {
		if rec[i] != 0 {
			t.Fatalf("byte %d should be zero padding, got %x", i, rec[i])
		}
	}
}

func TestEncodePath_Truncates(t *testing.T) {
	long := strings.Repeat("a", 100)
	rec := EncodePath(long)
	got, err := DecodePath(rec[:])
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	if len(got) != MaxPathLen {
		t.Errorf("expected %d characters, got %d", MaxPathLen, len(got))
	}
	if rec[PathRecordSize-1] != 0 {
		t.Error("last byte of a path record must be the terminator")
	}
}

func TestDecodePath_Unterminated(t *testing.T) {
	rec := bytes.Repeat([]byte{'x'}, PathRecordSize)
	if _, err := DecodePath(rec); !errors.Is(err, ErrUnterminatedPath) {
		t.Errorf("expected ErrUnterminatedPath, got %v", err)
	}
}

func TestDecodePath_IgnoresBytesAfterTerminator(t *testing.T) {
	rec := make([]byte, PathRecordSize)
	copy(rec, "a.png\x00garbage")
	got, err := DecodePath(rec)
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	if got != "a.png" {
		t.Errorf("expected a.png, got %q", got)
	}
}

func TestEncodeProperties(t *testing.T) {
	def := TileDef{Frames: 17, Properties: PropertySolid | PropertyGenerator}
	rec := EncodeProperties(def)

	words := make([]uint32, 8)
	binary.Read(bytes.NewReader(rec[:]), binary.LittleEndian, words)
	want := []uint32{PropertiesMagic, 17, 2, 0, 0, 16, 0, 0}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d: expected %d, got %d", i, want[i], words[i])
		}
	}

	frames, props, err := DecodeProperties(rec[:], 0x40)
	if err != nil {
		t.Fatalf("DecodeProperties failed: %v", err)
	}
	if frames != 17 || props != def.Properties {
		t.Errorf("expected (17, %v), got (%d, %v)", def.Properties, frames, props)
	}
}

func TestDecodeProperties_NonZeroFlagsAreSet(t *testing.T) {
	rec := EncodeProperties(TileDef{Frames: 1})
	binary.LittleEndian.PutUint32(rec[0x0c:], 1)
	binary.LittleEndian.PutUint32(rec[0x10:], 1)

	_, props, err := DecodeProperties(rec[:], 0)
	if err != nil {
		t.Fatalf("DecodeProperties failed: %v", err)
	}
	if !props.IsDestructible() || !props.IsCollectible() || props.IsGenerator() {
		t.Errorf("unexpected properties %v", props)
	}
}

func TestHeader_Encode(t *testing.T) {
	h := NewLayout(6, 40, 16).Header()
	b := h.Encode()

	got, err := DecodeHeader(b[:])
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if got != h {
		t.Errorf("expected %+v, got %+v", h, got)
	}
	if string(b[:4]) != "MARC" {
		t.Errorf("expected MARC signature bytes, got %q", b[:4])
	}
}

func TestMapHeader_Encode(t *testing.T) {
	mh := NewMapHeader(40, 16)
	b := mh.Encode()
	if string(b[:4]) != "MAPF" {
		t.Errorf("expected MAPF signature bytes, got %q", b[:4])
	}
	got, err := DecodeMapHeader(b[:], 0)
	if err != nil {
		t.Fatalf("DecodeMapHeader failed: %v", err)
	}
	if got.CellCount != 640 {
		t.Errorf("expected 640 cells, got %d", got.CellCount)
	}
}
