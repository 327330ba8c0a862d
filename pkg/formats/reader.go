package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Reader gives random access to the blocks of a map archive. Offsets are
// taken from the stored headers, and every signature is validated on read.
type Reader struct {
	r         io.ReaderAt
	header    Header
	mapHeader MapHeader
}

// NewReader validates the container and MAPF headers of r.
func NewReader(r io.ReaderAt) (*Reader, error) {
	var hb [HeaderSize]byte
	if err := readAt(r, hb[:], 0, "MARC header"); err != nil {
		return nil, err
	}
	h, err := DecodeHeader(hb[:])
	if err != nil {
		return nil, err
	}
	if int(h.ObjectCount) > MaxObjects {
		return nil, fmt.Errorf("%w: header declares %d", ErrTooManyObjects, h.ObjectCount)
	}

	var mb [MapHeaderSize]byte
	if err := readAt(r, mb[:], int64(h.MapOffset), "MAPF header"); err != nil {
		return nil, err
	}
	mh, err := DecodeMapHeader(mb[:], int64(h.MapOffset))
	if err != nil {
		return nil, err
	}

	return &Reader{r: r, header: h, mapHeader: mh}, nil
}

// Header returns the container header.
func (r *Reader) Header() Header {
	return r.header
}

// MapHeader returns the MAPF header.
func (r *Reader) MapHeader() MapHeader {
	return r.mapHeader
}

// ObjectCount is the catalog size N.
func (r *Reader) ObjectCount() int {
	return int(r.header.ObjectCount)
}

// Layout is the canonical layout for the stored counts and dimensions.
func (r *Reader) Layout() Layout {
	return LayoutOf(r.header, r.mapHeader)
}

func (r *Reader) checkIndex(i int) error {
	if i < 0 || i >= r.ObjectCount() {
		return fmt.Errorf("tile index %d out of range [0,%d)", i, r.ObjectCount())
	}
	return nil
}

// PathRecord returns the raw path record of tile i.
func (r *Reader) PathRecord(i int) ([PathRecordSize]byte, error) {
	var b [PathRecordSize]byte
	if err := r.checkIndex(i); err != nil {
		return b, err
	}
	off := int64(HeaderSize) + int64(i)*PathRecordSize
	if err := readAt(r.r, b[:], off, "path record"); err != nil {
		return b, err
	}
	if _, err := DecodePath(b[:]); err != nil {
		return b, fmt.Errorf("tile %d at offset [%x]: %w", i, off, err)
	}
	return b, nil
}

// Path returns the resource path of tile i.
func (r *Reader) Path(i int) (string, error) {
	b, err := r.PathRecord(i)
	if err != nil {
		return "", err
	}
	return DecodePath(b[:])
}

// PropertyRecord returns the raw property record of tile i after checking its signature.
func (r *Reader) PropertyRecord(i int) ([PropertyRecordSize]byte, error) {
	var b [PropertyRecordSize]byte
	if err := r.checkIndex(i); err != nil {
		return b, err
	}
	off := int64(r.header.PropertiesOffset) + int64(i)*PropertyRecordSize
	if err := readAt(r.r, b[:], off, "tile properties"); err != nil {
		return b, err
	}
	if err := checkMagic("Tile properties", binary.LittleEndian.Uint32(b[:]), PropertiesMagic, off); err != nil {
		return b, err
	}
	return b, nil
}

// Object decodes catalog entry i.
func (r *Reader) Object(i int) (TileDef, error) {
	path, err := r.Path(i)
	if err != nil {
		return TileDef{}, err
	}
	b, err := r.PropertyRecord(i)
	if err != nil {
		return TileDef{}, err
	}
	off := int64(r.header.PropertiesOffset) + int64(i)*PropertyRecordSize
	frames, props, err := DecodeProperties(b[:], off)
	if err != nil {
		return TileDef{}, err
	}
	return TileDef{Path: path, Frames: frames, Properties: props}, nil
}

// Objects decodes the whole catalog.
func (r *Reader) Objects() ([]TileDef, error) {
	defs := make([]TileDef, r.ObjectCount())
	for i := range defs {
		def, err := r.Object(i)
		if err != nil {
			return nil, err
		}
		defs[i] = def
	}
	return defs, nil
}

// ReadRow fills buf, which must be exactly one row long, with grid row y.
func (r *Reader) ReadRow(y int, buf []byte) error {
	if len(buf) != int(r.mapHeader.Width) {
		return fmt.Errorf("row buffer is %d bytes, map width is %d", len(buf), r.mapHeader.Width)
	}
	if y < 0 || y >= int(r.mapHeader.Height) {
		return fmt.Errorf("row %d out of range [0,%d)", y, r.mapHeader.Height)
	}
	off := int64(r.header.MapOffset) + MapHeaderSize + int64(y)*int64(r.mapHeader.Width)
	return readAt(r.r, buf, off, "map row")
}

// readAt reads exactly len(b) bytes at off.
func readAt(r io.ReaderAt, b []byte, off int64, what string) error {
	n, err := r.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: reading %s at offset [%x]", ErrTruncatedMARCData, what, off)
	}
	return fmt.Errorf("reading %s at offset [%x]: %w", what, off, err)
}
