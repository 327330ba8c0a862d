package tilemap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/marc/pkg/formats"
)

func TestProfile_Check(t *testing.T) {
	tests := []struct {
		width, height int
		ok            bool
	}{
		{16, 12, true},
		{1024, 20, true},
		{15, 12, false},
		{1025, 12, false},
		{16, 11, false},
		{16, 21, false},
	}

	for _, tc := range tests {
		err := EditorProfile.Check(tc.width, tc.height)
		if tc.ok && err != nil {
			t.Errorf("%dx%d: unexpected error %v", tc.width, tc.height, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidSize) {
			t.Errorf("%dx%d: expected ErrInvalidSize, got %v", tc.width, tc.height, err)
		}
	}

	if err := AnyProfile.Check(1, 1); err != nil {
		t.Errorf("AnyProfile rejected 1x1: %v", err)
	}
	if err := AnyProfile.Check(0, 4); err == nil {
		t.Error("AnyProfile should reject a zero width")
	}
}

func TestMap_Allocate(t *testing.T) {
	m := New(EditorProfile)
	if err := m.Allocate(10, 12); err == nil {
		t.Fatal("expected error for width below the editor range")
	}
	if err := m.Allocate(16, 12); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if m.Width() != 16 || m.Height() != 12 {
		t.Errorf("expected 16x12, got %dx%d", m.Width(), m.Height())
	}
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			if m.Get(x, y) != 0 {
				t.Fatalf("cell (%d,%d) not zeroed", x, y)
			}
		}
	}

	m.Set(15, 11, 7)
	if m.Get(15, 11) != 7 {
		t.Errorf("expected 7, got %d", m.Get(15, 11))
	}
}

func TestMap_GetOutOfRangePanics(t *testing.T) {
	m := New(AnyProfile)
	m.Allocate(2, 2)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out of range cell")
		}
	}()
	m.Get(0, 2)
}

func TestMap_ObjectRegistration(t *testing.T) {
	m := New(AnyProfile)

	if err := m.AddObject("a.png", 1, formats.PropertyAir); !errors.Is(err, ErrCatalogClosed) {
		t.Errorf("add without begin: expected ErrCatalogClosed, got %v", err)
	}
	if err := m.EndObjects(); !errors.Is(err, ErrCatalogClosed) {
		t.Errorf("end without begin: expected ErrCatalogClosed, got %v", err)
	}
	if err := m.BeginObjects(formats.MaxObjects + 1); !errors.Is(err, formats.ErrTooManyObjects) {
		t.Errorf("expected ErrTooManyObjects, got %v", err)
	}

	if err := m.BeginObjects(2); err != nil {
		t.Fatalf("BeginObjects failed: %v", err)
	}
	if err := m.BeginObjects(2); !errors.Is(err, ErrCatalogOpen) {
		t.Errorf("nested begin: expected ErrCatalogOpen, got %v", err)
	}
	if err := m.AddObject("images/coin.png", 20, formats.PropertyAir|formats.PropertyCollectible); err != nil {
		t.Fatalf("AddObject failed: %v", err)
	}
	if err := m.EndObjects(); !errors.Is(err, ErrCatalogIncomplete) {
		t.Errorf("short catalog: expected ErrCatalogIncomplete, got %v", err)
	}
	if err := m.AddObject("images/marble.png", 1, formats.PropertySolid|formats.PropertyDestructible); err != nil {
		t.Fatalf("AddObject failed: %v", err)
	}
	if err := m.AddObject("extra.png", 1, formats.PropertyAir); !errors.Is(err, ErrCatalogFull) {
		t.Errorf("extra add: expected ErrCatalogFull, got %v", err)
	}
	if err := m.EndObjects(); err != nil {
		t.Fatalf("EndObjects failed: %v", err)
	}

	if m.Objects() != 2 {
		t.Fatalf("expected 2 objects, got %d", m.Objects())
	}
	if m.Path(0) != "images/coin.png" || m.Frames(0) != 20 {
		t.Errorf("unexpected tile 0: %s/%d", m.Path(0), m.Frames(0))
	}
	if !m.IsCollectible(0) || m.IsDestructible(0) || m.Solidity(0) != formats.SolidityAir {
		t.Errorf("unexpected tile 0 properties %v", m.Object(0).Properties)
	}
	if !m.IsDestructible(1) || m.Solidity(1) != formats.SoliditySolid || m.IsGenerator(1) {
		t.Errorf("unexpected tile 1 properties %v", m.Object(1).Properties)
	}
}

func TestMap_AddObjectTruncatesPath(t *testing.T) {
	m := New(AnyProfile)
	m.BeginObjects(1)
	m.AddObject(string(bytes.Repeat([]byte{'p'}, 80)), 1, formats.PropertyAir)
	m.EndObjects()

	if len(m.Path(0)) != formats.MaxPathLen {
		t.Errorf("expected path truncated to %d, got %d", formats.MaxPathLen, len(m.Path(0)))
	}
}

func TestMap_SaveLoadRoundTrip(t *testing.T) {
	m, err := NewSample(EditorProfile, 40, 16)
	if err != nil {
		t.Fatalf("NewSample failed: %v", err)
	}
	m.Set(5, 10, SampleCoin)
	m.Set(6, 10, SampleCoin)
	m.Set(7, 14, SampleMarble)

	path := filepath.Join(t.TempDir(), "level.map")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() != m.Layout().Size() {
		t.Errorf("file is %d bytes, layout says %d", info.Size(), m.Layout().Size())
	}
	if info.Size()%formats.Alignment != 0 {
		t.Errorf("file size %d is not aligned", info.Size())
	}

	loaded := New(EditorProfile)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Width() != 40 || loaded.Height() != 16 {
		t.Fatalf("expected 40x16, got %dx%d", loaded.Width(), loaded.Height())
	}
	if loaded.Objects() != len(SampleObjects) {
		t.Fatalf("expected %d objects, got %d", len(SampleObjects), loaded.Objects())
	}
	for i, def := range SampleObjects {
		if loaded.Object(i) != def {
			t.Errorf("object %d: expected %+v, got %+v", i, def, loaded.Object(i))
		}
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 40; x++ {
			if loaded.Get(x, y) != m.Get(x, y) {
				t.Fatalf("cell (%d,%d): expected %d, got %d", x, y, m.Get(x, y), loaded.Get(x, y))
			}
		}
	}

	again := filepath.Join(t.TempDir(), "again.map")
	if err := loaded.Save(again); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	a, _ := os.ReadFile(path)
	b, _ := os.ReadFile(again)
	if !bytes.Equal(a, b) {
		t.Error("saving a loaded map should reproduce the same bytes")
	}
}

func TestMap_LoadRejectsOutOfRangeCells(t *testing.T) {
	m := New(AnyProfile)
	m.Allocate(2, 1)
	m.BeginObjects(1)
	m.AddObject("a.png", 1, formats.PropertySolid)
	m.EndObjects()
	m.Set(1, 0, 3)

	path := filepath.Join(t.TempDir(), "bad.map")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := New(AnyProfile).Load(path); !errors.Is(err, formats.ErrCellOutOfRange) {
		t.Errorf("expected ErrCellOutOfRange, got %v", err)
	}
}

func TestMap_LoadRejectsSizeOutsideProfile(t *testing.T) {
	m := New(AnyProfile)
	m.Allocate(4, 4)
	path := filepath.Join(t.TempDir(), "small.map")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := New(EditorProfile).Load(path); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestMap_SaveDuringRegistration(t *testing.T) {
	m := New(AnyProfile)
	m.Allocate(2, 2)
	m.BeginObjects(1)
	if err := m.Save(filepath.Join(t.TempDir(), "x.map")); !errors.Is(err, ErrCatalogOpen) {
		t.Errorf("expected ErrCatalogOpen, got %v", err)
	}
}

func TestNewSample(t *testing.T) {
	m, err := NewSample(EditorProfile, 16, 12)
	if err != nil {
		t.Fatalf("NewSample failed: %v", err)
	}

	for x := 0; x < 16; x++ {
		if m.Get(x, 11) != SampleGround {
			t.Errorf("expected ground at (%d,11), got %d", x, m.Get(x, 11))
		}
	}
	for y := 0; y < 11; y++ {
		if m.Get(0, y) != SampleWall || m.Get(15, y) != SampleWall {
			t.Errorf("expected walls on row %d", y)
		}
		if !m.Get(7, y).IsNone() {
			t.Errorf("expected empty sky at (7,%d), got %d", y, m.Get(7, y))
		}
	}
	if m.Frames(int(SampleCoin)) != 20 || !m.IsCollectible(int(SampleCoin)) {
		t.Errorf("unexpected coin tile %+v", m.Object(int(SampleCoin)))
	}

	if _, err := NewSample(EditorProfile, 8, 12); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestMap_CollectibleCount(t *testing.T) {
	m, _ := NewSample(EditorProfile, 16, 12)
	if m.CollectibleCount() != 0 {
		t.Errorf("expected no collectibles, got %d", m.CollectibleCount())
	}
	m.Set(3, 3, SampleCoin)
	m.Set(4, 3, SampleCoin)
	m.Set(5, 3, SampleFlower)
	if m.CollectibleCount() != 2 {
		t.Errorf("expected 2 collectibles, got %d", m.CollectibleCount())
	}
}
