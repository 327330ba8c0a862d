// Package tilemap holds the in-memory tile map used by the game and editor.
package tilemap

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/Faultbox/marc/pkg/formats"
)

// Map errors.
var (
	ErrInvalidSize       = errors.New("map size out of bounds")
	ErrCatalogOpen       = errors.New("tile registration already in progress")
	ErrCatalogClosed     = errors.New("no tile registration in progress")
	ErrCatalogFull       = errors.New("more tiles added than announced")
	ErrCatalogIncomplete = errors.New("fewer tiles added than announced")
)

// Profile bounds the dimensions a Map accepts.
type Profile struct {
	MinWidth  int `yaml:"min_width"`
	MaxWidth  int `yaml:"max_width"`
	MinHeight int `yaml:"min_height"`
	MaxHeight int `yaml:"max_height"`
}

// EditorProfile is the size range of the interactive editor.
var EditorProfile = Profile{
	MinWidth:  16,
	MaxWidth:  1024,
	MinHeight: 12,
	MaxHeight: 20,
}

// AnyProfile accepts every non-empty grid.
var AnyProfile = Profile{
	MinWidth:  1,
	MaxWidth:  math.MaxInt32,
	MinHeight: 1,
	MaxHeight: math.MaxInt32,
}

// Check reports whether a width x height grid fits the profile.
func (p Profile) Check(width, height int) error {
	if width < p.MinWidth || width > p.MaxWidth || height < p.MinHeight || height > p.MaxHeight {
		return fmt.Errorf("%w: %dx%d (width %d-%d, height %d-%d)", ErrInvalidSize,
			width, height, p.MinWidth, p.MaxWidth, p.MinHeight, p.MaxHeight)
	}
	return nil
}

// Map is the active tile map: a grid of catalog indices plus the catalog.
type Map struct {
	profile Profile
	width   int
	height  int
	cells   []formats.Cell
	objects []formats.TileDef
	marks   []uint8

	// Tile registration state, see BeginObjects.
	pending  []formats.TileDef
	expected int
	building bool
}

// New returns an empty map bound by profile.
func New(profile Profile) *Map {
	return &Map{profile: profile}
}

// Allocate replaces the grid with a zero-filled width x height grid.
func (m *Map) Allocate(width, height int) error {
	if err := m.profile.Check(width, height); err != nil {
		return err
	}
	m.width = width
	m.height = height
	m.cells = make([]formats.Cell, width*height)
	m.marks = nil
	return nil
}

// Width returns the number of tiles on the x axis.
func (m *Map) Width() int {
	return m.width
}

// Height returns the number of tiles on the y axis.
func (m *Map) Height() int {
	return m.height
}

// Get returns the cell at (x, y). Coordinates must be inside the grid.
func (m *Map) Get(x, y int) formats.Cell {
	return m.cells[y*m.width+x]
}

// Set stores c at (x, y). Coordinates must be inside the grid.
func (m *Map) Set(x, y int, c formats.Cell) {
	m.cells[y*m.width+x] = c
}

// Fill sets every cell to c.
func (m *Map) Fill(c formats.Cell) {
	for i := range m.cells {
		m.cells[i] = c
	}
}

// BeginObjects starts registering a catalog of n tiles. The catalog in use
// is replaced once EndObjects succeeds.
func (m *Map) BeginObjects(n int) error {
	if m.building {
		return ErrCatalogOpen
	}
	if n < 0 || n > formats.MaxObjects {
		return fmt.Errorf("%w: %d", formats.ErrTooManyObjects, n)
	}
	m.building = true
	m.expected = n
	m.pending = make([]formats.TileDef, 0, n)
	return nil
}

// AddObject registers the next tile.
func (m *Map) AddObject(path string, frames uint32, props formats.TileProperty) error {
	if !m.building {
		return ErrCatalogClosed
	}
	if len(m.pending) == m.expected {
		return fmt.Errorf("%w: %d", ErrCatalogFull, m.expected)
	}
	if len(path) > formats.MaxPathLen {
		path = path[:formats.MaxPathLen]
	}
	m.pending = append(m.pending, formats.TileDef{Path: path, Frames: frames, Properties: props})
	return nil
}

// EndObjects installs the registered catalog.
func (m *Map) EndObjects() error {
	if !m.building {
		return ErrCatalogClosed
	}
	if len(m.pending) != m.expected {
		return fmt.Errorf("%w: %d of %d", ErrCatalogIncomplete, len(m.pending), m.expected)
	}
	m.objects = m.pending
	m.pending = nil
	m.building = false
	return nil
}

// Objects returns the number of tiles in the catalog.
func (m *Map) Objects() int {
	return len(m.objects)
}

// Object returns catalog entry i.
func (m *Map) Object(i int) formats.TileDef {
	return m.objects[i]
}

// Path returns the image path of tile i.
func (m *Map) Path(i int) string {
	return m.objects[i].Path
}

// Frames returns the frame count of tile i.
func (m *Map) Frames(i int) uint32 {
	return m.objects[i].Frames
}

// Solidity returns the collision class of tile i.
func (m *Map) Solidity(i int) formats.Solidity {
	return m.objects[i].Properties.Solidity()
}

// IsDestructible reports whether tile i can be destroyed.
func (m *Map) IsDestructible(i int) bool {
	return m.objects[i].Properties.IsDestructible()
}

// IsCollectible reports whether tile i is a collectible item.
func (m *Map) IsCollectible(i int) bool {
	return m.objects[i].Properties.IsCollectible()
}

// IsGenerator reports whether tile i triggers an action.
func (m *Map) IsGenerator(i int) bool {
	return m.objects[i].Properties.IsGenerator()
}

// CollectibleCount counts the grid cells holding a collectible tile that
// has not been marked used.
func (m *Map) CollectibleCount() int {
	count := 0
	for i, c := range m.cells {
		if c.IsNone() || int(c) >= len(m.objects) || !m.objects[c].Properties.IsCollectible() {
			continue
		}
		if m.marks != nil && m.marks[i]&markUsed != 0 {
			continue
		}
		count++
	}
	return count
}

// Layout returns the archive layout Save would produce.
func (m *Map) Layout() formats.Layout {
	return formats.NewLayout(len(m.objects), uint32(m.width), uint32(m.height))
}

// Save writes the map to path as a MARC archive.
func (m *Map) Save(path string) error {
	if m.building {
		return ErrCatalogOpen
	}

	archive := &formats.MARC{
		Objects: m.objects,
		Width:   uint32(m.width),
		Height:  uint32(m.height),
		Cells:   m.cells,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating map file: %w", err)
	}
	if _, err := archive.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing map %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing map %s: %w", path, err)
	}
	return nil
}

// Load replaces the map with the archive stored at path.
func (m *Map) Load(path string) error {
	if m.building {
		return ErrCatalogOpen
	}

	archive, err := formats.ParseMARCFile(path)
	if err != nil {
		return fmt.Errorf("loading map %s: %w", path, err)
	}
	if err := m.profile.Check(int(archive.Width), int(archive.Height)); err != nil {
		return fmt.Errorf("loading map %s: %w", path, err)
	}
	for i, c := range archive.Cells {
		if !c.IsNone() && int(c) >= len(archive.Objects) {
			return fmt.Errorf("loading map %s: %w: cell (%d,%d) = %d, catalog has %d tiles", path,
				formats.ErrCellOutOfRange, i%int(archive.Width), i/int(archive.Width), c, len(archive.Objects))
		}
	}

	m.width = int(archive.Width)
	m.height = int(archive.Height)
	m.cells = archive.Cells
	m.objects = archive.Objects
	m.marks = nil
	return nil
}
