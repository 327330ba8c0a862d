package tilemap

import "github.com/Faultbox/marc/pkg/formats"

// Runtime cell marks. They live beside the grid and are never saved.
const (
	markUsed uint8 = 1 << iota
	markMine
)

func (m *Map) inBounds(x, y int) bool {
	return x >= 0 && x < m.width && y >= 0 && y < m.height
}

// tile returns the catalog entry at (x, y), if the cell holds one.
func (m *Map) tile(x, y int) (formats.TileDef, bool) {
	if !m.inBounds(x, y) {
		return formats.TileDef{}, false
	}
	c := m.cells[y*m.width+x]
	if c.IsNone() || int(c) >= len(m.objects) {
		return formats.TileDef{}, false
	}
	return m.objects[c], true
}

// IsFloor reports whether something can stand on (x, y): a solid or
// semi-solid tile. Cells outside the grid are not floor.
func (m *Map) IsFloor(x, y int) bool {
	def, ok := m.tile(x, y)
	return ok && def.Properties.Solidity() != formats.SolidityAir
}

// IsTough reports whether (x, y) blocks from every side.
func (m *Map) IsTough(x, y int) bool {
	def, ok := m.tile(x, y)
	return ok && def.Properties.Solidity() == formats.SoliditySolid
}

func (m *Map) mark(x, y int, bit uint8, on bool) {
	if !m.inBounds(x, y) {
		return
	}
	if m.marks == nil {
		m.marks = make([]uint8, len(m.cells))
	}
	i := y*m.width + x
	if on {
		m.marks[i] |= bit
	} else {
		m.marks[i] &^= bit
	}
}

func (m *Map) marked(x, y int, bit uint8) bool {
	return m.inBounds(x, y) && m.marks != nil && m.marks[y*m.width+x]&bit != 0
}

// SetUsed marks the cell at (x, y) as consumed, e.g. a picked-up coin.
func (m *Map) SetUsed(x, y int) {
	m.mark(x, y, markUsed, true)
}

// IsUsed reports whether SetUsed was called for (x, y).
func (m *Map) IsUsed(x, y int) bool {
	return m.marked(x, y, markUsed)
}

// AddMine arms a mine at (x, y).
func (m *Map) AddMine(x, y int) {
	m.mark(x, y, markMine, true)
}

// ClearMine disarms the mine at (x, y).
func (m *Map) ClearMine(x, y int) {
	m.mark(x, y, markMine, false)
}

// IsMine reports whether a mine is armed at (x, y).
func (m *Map) IsMine(x, y int) bool {
	return m.marked(x, y, markMine)
}
