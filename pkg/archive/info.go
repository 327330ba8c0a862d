// Package archive edits MARC map archives in place: resizing the grid and
// replacing or pruning the tile catalog, one streamed pass per mutation.
package archive

import (
	"fmt"
	"os"

	"github.com/Faultbox/marc/pkg/formats"
)

// Info summarizes an archive.
type Info struct {
	Objects int
	Width   uint32
	Height  uint32
	Size    int64
}

func infoOf(l formats.Layout, size int64) Info {
	return Info{
		Objects: l.Objects,
		Width:   l.Width,
		Height:  l.Height,
		Size:    size,
	}
}

// ReadInfo validates the headers of the archive at path and returns its
// dimensions and catalog size.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, err
	}
	r, err := formats.NewReader(f)
	if err != nil {
		return Info{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return infoOf(r.Layout(), st.Size()), nil
}

// Width returns the grid width of the archive at path.
func Width(path string) (uint32, error) {
	info, err := ReadInfo(path)
	return info.Width, err
}

// Height returns the grid height of the archive at path.
func Height(path string) (uint32, error) {
	info, err := ReadInfo(path)
	return info.Height, err
}

// ObjectCount returns the catalog size of the archive at path.
func ObjectCount(path string) (int, error) {
	info, err := ReadInfo(path)
	return info.Objects, err
}
