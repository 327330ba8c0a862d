package tilemap

import "github.com/Faultbox/marc/pkg/formats"

// Catalog indices of the starter tiles.
const (
	SampleGround formats.Cell = iota
	SampleWall
	SampleGrass
	SampleMarble
	SampleFlower
	SampleCoin
)

// SampleObjects is the starter catalog.
var SampleObjects = []formats.TileDef{
	{Path: "images/ground.png", Frames: 1, Properties: formats.PropertySolid},
	{Path: "images/wall.png", Frames: 1, Properties: formats.PropertySolid},
	{Path: "images/grass.png", Frames: 1, Properties: formats.PropertySemiSolid},
	{Path: "images/marble.png", Frames: 1, Properties: formats.PropertySolid | formats.PropertyDestructible},
	{Path: "images/flower.png", Frames: 1, Properties: formats.PropertyAir},
	{Path: "images/coin.png", Frames: 20, Properties: formats.PropertyAir | formats.PropertyCollectible},
}

// NewSample builds a starter map: empty sky, a ground row along the bottom
// line and a wall on both side columns above it.
func NewSample(profile Profile, width, height int) (*Map, error) {
	m := New(profile)
	if err := m.Allocate(width, height); err != nil {
		return nil, err
	}
	m.Fill(formats.CellNone)

	for x := 0; x < width; x++ {
		m.Set(x, height-1, SampleGround)
	}
	for y := 0; y < height-1; y++ {
		m.Set(0, y, SampleWall)
		m.Set(width-1, y, SampleWall)
	}

	if err := m.BeginObjects(len(SampleObjects)); err != nil {
		return nil, err
	}
	for _, def := range SampleObjects {
		if err := m.AddObject(def.Path, def.Frames, def.Properties); err != nil {
			return nil, err
		}
	}
	if err := m.EndObjects(); err != nil {
		return nil, err
	}
	return m, nil
}
