package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dgryski/go-farm"
)

// ErrWriteOrder is returned when blocks are written out of layout order.
var ErrWriteOrder = errors.New("MARC block written out of order")

var zeroPadding [Alignment]byte

// Writer streams a map archive in layout order: header (written by
// NewWriter), path records, property records, MAPF header, rows, then
// padding on Finish. Each write is checked against the layout, so header
// offsets never need patching.
type Writer struct {
	w      *bufio.Writer
	layout Layout
	off    int64
	rows   int
	sum    uint64
}

// NewWriter writes the container header for l and returns a Writer for the rest.
func NewWriter(w io.Writer, l Layout) (*Writer, error) {
	if l.Objects < 0 || l.Objects > MaxObjects {
		return nil, fmt.Errorf("%w: %d", ErrTooManyObjects, l.Objects)
	}
	if l.Size() > math.MaxUint32 {
		return nil, fmt.Errorf("archive of %d bytes exceeds 32-bit offsets", l.Size())
	}

	aw := &Writer{
		w:      bufio.NewWriter(w),
		layout: l,
	}
	h := l.Header().Encode()
	if err := aw.record(h[:]); err != nil {
		return nil, err
	}
	return aw, nil
}

// Layout returns the layout being written.
func (w *Writer) Layout() Layout {
	return w.layout
}

// Offset is the number of bytes written so far.
func (w *Writer) Offset() int64 {
	return w.off
}

// Sum is the chained checksum of every record written so far.
func (w *Writer) Sum() uint64 {
	return w.sum
}

func (w *Writer) record(b []byte) error {
	n, err := w.w.Write(b)
	w.off += int64(n)
	if err != nil {
		return fmt.Errorf("writing at offset [%x]: %w", w.off, err)
	}
	w.sum = chainSum(w.sum, b)
	return nil
}

func (w *Writer) expect(what string, ok bool) error {
	if !ok {
		return fmt.Errorf("%w: %s at offset [%x]", ErrWriteOrder, what, w.off)
	}
	return nil
}

// WritePath writes the next path record.
func (w *Writer) WritePath(path string) error {
	return w.WritePathRecord(EncodePath(path))
}

// WritePathRecord writes the next path record verbatim.
func (w *Writer) WritePathRecord(rec [PathRecordSize]byte) error {
	if err := w.expect("path record", w.off >= w.layout.PathsOffset() && w.off < w.layout.PropertiesOffset()); err != nil {
		return err
	}
	return w.record(rec[:])
}

// WriteProperties writes the next property record.
func (w *Writer) WriteProperties(def TileDef) error {
	return w.WritePropertyRecord(EncodeProperties(def))
}

// WritePropertyRecord writes the next property record verbatim.
func (w *Writer) WritePropertyRecord(rec [PropertyRecordSize]byte) error {
	if err := w.expect("property record", w.off >= w.layout.PropertiesOffset() && w.off < w.layout.MapOffset()); err != nil {
		return err
	}
	return w.record(rec[:])
}

// WriteMapHeader writes the MAPF header.
func (w *Writer) WriteMapHeader() error {
	if err := w.expect("MAPF header", w.off == w.layout.MapOffset()); err != nil {
		return err
	}
	h := w.layout.MapHeader().Encode()
	return w.record(h[:])
}

// WriteRow writes the next grid row; row must be exactly one map width long.
func (w *Writer) WriteRow(row []byte) error {
	if len(row) != int(w.layout.Width) {
		return fmt.Errorf("row is %d bytes, map width is %d", len(row), w.layout.Width)
	}
	if err := w.expect("map row", w.rows < int(w.layout.Height) && w.off == w.layout.RowOffset(w.rows)); err != nil {
		return err
	}
	if err := w.record(row); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Finish pads the archive to the alignment boundary and flushes it.
func (w *Writer) Finish() error {
	if err := w.expect("end of map data", w.rows == int(w.layout.Height) && w.off == w.layout.DataEnd()); err != nil {
		return err
	}
	if pad := w.layout.Padding(); pad > 0 {
		if err := w.record(zeroPadding[:pad]); err != nil {
			return err
		}
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flushing archive: %w", err)
	}
	return nil
}

// WriteTo serializes m.
func (m *MARC) WriteTo(dst io.Writer) (int64, error) {
	l := m.Layout()
	if int64(len(m.Cells)) != l.CellCount() {
		return 0, fmt.Errorf("%w: %dx%d with %d cells", ErrCellCountMismatch, m.Width, m.Height, len(m.Cells))
	}

	w, err := NewWriter(dst, l)
	if err != nil {
		return 0, err
	}
	for _, def := range m.Objects {
		if err := w.WritePath(def.Path); err != nil {
			return w.Offset(), err
		}
	}
	for _, def := range m.Objects {
		if err := w.WriteProperties(def); err != nil {
			return w.Offset(), err
		}
	}
	if err := w.WriteMapHeader(); err != nil {
		return w.Offset(), err
	}

	row := make([]byte, m.Width)
	for y := 0; y < int(m.Height); y++ {
		for x := range row {
			row[x] = byte(m.Cells[y*int(m.Width)+x])
		}
		if err := w.WriteRow(row); err != nil {
			return w.Offset(), err
		}
	}
	if err := w.Finish(); err != nil {
		return w.Offset(), err
	}
	return w.Offset(), nil
}

func chainSum(sum uint64, rec []byte) uint64 {
	return farm.Hash64WithSeed(rec, sum)
}

// Checksum re-reads an archive written with layout l record by record and
// returns the same chained checksum a Writer reports.
func Checksum(r io.ReaderAt, l Layout) (uint64, error) {
	var sum uint64
	off := int64(0)
	next := func(b []byte, what string) error {
		if err := readAt(r, b, off, what); err != nil {
			return err
		}
		off += int64(len(b))
		sum = chainSum(sum, b)
		return nil
	}

	var hb [HeaderSize]byte
	if err := next(hb[:], "MARC header"); err != nil {
		return 0, err
	}
	var pb [PathRecordSize]byte
	for i := 0; i < l.Objects; i++ {
		if err := next(pb[:], "path record"); err != nil {
			return 0, err
		}
	}
	var rb [PropertyRecordSize]byte
	for i := 0; i < l.Objects; i++ {
		if err := next(rb[:], "tile properties"); err != nil {
			return 0, err
		}
	}
	var mb [MapHeaderSize]byte
	if err := next(mb[:], "MAPF header"); err != nil {
		return 0, err
	}
	row := make([]byte, l.Width)
	for y := 0; y < int(l.Height); y++ {
		if err := next(row, "map row"); err != nil {
			return 0, err
		}
	}
	if pad := l.Padding(); pad > 0 {
		var zb [Alignment]byte
		if err := next(zb[:pad], "padding"); err != nil {
			return 0, err
		}
	}
	return sum, nil
}
