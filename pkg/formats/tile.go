package formats

import (
	"fmt"
	"strings"
)

// Cell is one grid entry of a MAPF block: a catalog index or CellNone.
type Cell uint8

// CellNone marks an empty cell. Catalog indices therefore stop at 254.
const CellNone Cell = 0xFF

// MaxObjects is the largest catalog a byte-addressed grid can reference.
const MaxObjects = int(CellNone)

// IsNone reports whether the cell is empty.
func (c Cell) IsNone() bool {
	return c == CellNone
}

// Solidity is the mutually exclusive collision class of a tile.
type Solidity uint32

// Solidity classes, stored in the low two bits of TileProperty.
const (
	SolidityAir       Solidity = 0 // Crossable in all directions
	SoliditySemiSolid Solidity = 1 // Crossable from below only
	SoliditySolid     Solidity = 2 // Not crossable
)

// String returns the name used by the maputil tuple grammar.
func (s Solidity) String() string {
	switch s {
	case SolidityAir:
		return "air"
	case SoliditySemiSolid:
		return "semi-solid"
	case SoliditySolid:
		return "solid"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(s))
	}
}

// ParseSolidity parses "air", "semi-solid" or "solid".
func ParseSolidity(s string) (Solidity, error) {
	switch strings.ToLower(s) {
	case "air":
		return SolidityAir, nil
	case "semi-solid", "semisolid":
		return SoliditySemiSolid, nil
	case "solid":
		return SoliditySolid, nil
	default:
		return 0, fmt.Errorf("unknown solidity %q (want solid, semi-solid or air)", s)
	}
}

// TileProperty is the property bitset of a tile definition.
type TileProperty uint32

// Property bits. Air, SemiSolid and Solid share the solidity field.
const (
	PropertyAir          TileProperty = TileProperty(SolidityAir)
	PropertySemiSolid    TileProperty = TileProperty(SoliditySemiSolid)
	PropertySolid        TileProperty = TileProperty(SoliditySolid)
	PropertyDestructible TileProperty = 4
	PropertyCollectible  TileProperty = 8
	PropertyGenerator    TileProperty = 16

	solidityMask TileProperty = 3
)

// Solidity returns the collision class encoded in p.
func (p TileProperty) Solidity() Solidity {
	return Solidity(p & solidityMask)
}

// IsDestructible reports whether the destructible bit is set.
func (p TileProperty) IsDestructible() bool {
	return p&PropertyDestructible != 0
}

// IsCollectible reports whether the collectible bit is set.
func (p TileProperty) IsCollectible() bool {
	return p&PropertyCollectible != 0
}

// IsGenerator reports whether the generator bit is set.
func (p TileProperty) IsGenerator() bool {
	return p&PropertyGenerator != 0
}

// String returns e.g. "solid|destructible".
func (p TileProperty) String() string {
	parts := []string{p.Solidity().String()}
	if p.IsDestructible() {
		parts = append(parts, "destructible")
	}
	if p.IsCollectible() {
		parts = append(parts, "collectible")
	}
	if p.IsGenerator() {
		parts = append(parts, "generator")
	}
	return strings.Join(parts, "|")
}

// NewTileProperty combines a solidity class with the three flags.
func NewTileProperty(s Solidity, destructible, collectible, generator bool) TileProperty {
	p := TileProperty(s) & solidityMask
	if destructible {
		p |= PropertyDestructible
	}
	if collectible {
		p |= PropertyCollectible
	}
	if generator {
		p |= PropertyGenerator
	}
	return p
}

// TileDef is one catalog entry. Its identity is its index in the catalog.
type TileDef struct {
	Path       string
	Frames     uint32
	Properties TileProperty
}
