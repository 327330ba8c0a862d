package formats

// Layout maps a catalog size and grid dimensions to absolute block offsets.
// Every offset written to a MARC header comes from here.
type Layout struct {
	Objects int
	Width   uint32
	Height  uint32
}

// NewLayout returns the layout of an archive with the given catalog and grid.
func NewLayout(objects int, width, height uint32) Layout {
	return Layout{Objects: objects, Width: width, Height: height}
}

// LayoutOf returns the layout described by a container and map header pair.
func LayoutOf(h Header, m MapHeader) Layout {
	return NewLayout(int(h.ObjectCount), m.Width, m.Height)
}

// PathsOffset is the start of the path table.
func (l Layout) PathsOffset() int64 {
	return HeaderSize
}

// PathOffset is the start of path record i.
func (l Layout) PathOffset(i int) int64 {
	return l.PathsOffset() + int64(i)*PathRecordSize
}

// PropertiesOffset is the start of the property table.
func (l Layout) PropertiesOffset() int64 {
	return l.PathOffset(l.Objects)
}

// PropertyOffset is the start of property record i.
func (l Layout) PropertyOffset(i int) int64 {
	return l.PropertiesOffset() + int64(i)*PropertyRecordSize
}

// MapOffset is the start of the MAPF block.
func (l Layout) MapOffset() int64 {
	return l.PropertyOffset(l.Objects)
}

// CellsOffset is the start of the cell data.
func (l Layout) CellsOffset() int64 {
	return l.MapOffset() + MapHeaderSize
}

// CellCount is width x height.
func (l Layout) CellCount() int64 {
	return int64(l.Width) * int64(l.Height)
}

// RowOffset is the start of grid row y.
func (l Layout) RowOffset(y int) int64 {
	return l.CellsOffset() + int64(y)*int64(l.Width)
}

// DataEnd is the offset just past the last cell.
func (l Layout) DataEnd() int64 {
	return l.CellsOffset() + l.CellCount()
}

// Padding is the number of zero bytes that align the file to Alignment.
func (l Layout) Padding() int {
	if rem := l.DataEnd() % Alignment; rem != 0 {
		return int(Alignment - rem)
	}
	return 0
}

// Size is the total file size, padding included.
func (l Layout) Size() int64 {
	return l.DataEnd() + int64(l.Padding())
}

// Header returns the container header for this layout.
func (l Layout) Header() Header {
	return Header{
		Magic:            MARCMagic,
		ObjectCount:      uint32(l.Objects),
		PropertiesOffset: uint32(l.PropertiesOffset()),
		MapOffset:        uint32(l.MapOffset()),
	}
}

// MapHeader returns the MAPF header for this layout.
func (l Layout) MapHeader() MapHeader {
	return NewMapHeader(l.Width, l.Height)
}
