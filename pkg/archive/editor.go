package archive

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/marc/pkg/backup"
	"github.com/Faultbox/marc/pkg/formats"
)

// ErrInvalidDimension is returned for a zero width or height.
var ErrInvalidDimension = errors.New("map dimension must be at least 1")

// Result describes the outcome of a mutation. Backup is empty when nothing
// changed, since the copy is discarded in that case.
type Result struct {
	Changed bool
	Backup  string
	Before  Info
	After   Info
}

// Editor applies mutations to archives on disk. Every mutation runs under
// a backup guard and reads from the backup copy while it rewrites the target.
type Editor struct {
	guard *backup.Guard
	log   *zap.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the editor logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) {
		e.log = l
	}
}

// WithGuard sets the backup guard.
func WithGuard(g *backup.Guard) Option {
	return func(e *Editor) {
		e.guard = g
	}
}

// NewEditor creates an Editor. Without WithGuard it backs up with the
// default helpers.
func NewEditor(opts ...Option) *Editor {
	e := &Editor{log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.guard == nil {
		e.guard = backup.New(backup.DefaultConfig(), backup.WithLogger(e.log))
	}
	return e
}

// plan is a computed rewrite: the target layout and the writer that streams
// everything after the container header.
type plan struct {
	layout formats.Layout
	fill   func(w *formats.Writer) error
}

// planner inspects the snapshot and returns the rewrite, or nil when the
// mutation would not change the archive.
type planner func(src *formats.Reader) (*plan, error)

func (e *Editor) mutate(ctx context.Context, op, path string, p planner) (Result, error) {
	var res Result

	name, err := e.guard.Run(ctx, path, func(backupPath string) (bool, error) {
		snap, err := openSnapshot(backupPath)
		if err != nil {
			return false, err
		}
		defer snap.Close()

		src, err := formats.NewReader(snap)
		if err != nil {
			return false, err
		}
		res.Before = infoOf(src.Layout(), snap.Size())
		res.After = res.Before

		pl, err := p(src)
		if err != nil || pl == nil {
			return false, err
		}
		if err := replaceFile(path, pl.layout, pl.fill); err != nil {
			return false, err
		}
		res.After = infoOf(pl.layout, pl.layout.Size())
		return true, nil
	})
	res.Backup = name
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", op, path, err)
	}
	res.Changed = name != ""

	if res.Changed {
		e.log.Info("Map updated",
			zap.String("op", op),
			zap.String("file", path),
			zap.String("backup", name),
			zap.Int64("size", res.After.Size))
	} else {
		e.log.Info("Nothing to do", zap.String("op", op), zap.String("file", path))
	}
	return res, nil
}

// copyRecords copies the path and property records of the listed source
// tiles verbatim, in order.
func copyRecords(src *formats.Reader, w *formats.Writer, tiles []int) error {
	for _, i := range tiles {
		rec, err := src.PathRecord(i)
		if err != nil {
			return err
		}
		if err := w.WritePathRecord(rec); err != nil {
			return err
		}
	}
	for _, i := range tiles {
		rec, err := src.PropertyRecord(i)
		if err != nil {
			return err
		}
		if err := w.WritePropertyRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func allTiles(n int) []int {
	tiles := make([]int, n)
	for i := range tiles {
		tiles[i] = i
	}
	return tiles
}

func emptyRow(width uint32) []byte {
	row := make([]byte, width)
	for i := range row {
		row[i] = byte(formats.CellNone)
	}
	return row
}

// SetWidth resizes the grid to width columns. New columns are appended on
// the right and filled with empty cells; removed columns are cut from the
// right.
func (e *Editor) SetWidth(ctx context.Context, path string, width uint32) (Result, error) {
	if width == 0 {
		return Result{}, fmt.Errorf("set width %s: %w", path, ErrInvalidDimension)
	}

	return e.mutate(ctx, "set width", path, func(src *formats.Reader) (*plan, error) {
		old := src.Layout()
		if old.Width == width {
			return nil, nil
		}

		l := formats.NewLayout(old.Objects, width, old.Height)
		return &plan{layout: l, fill: func(w *formats.Writer) error {
			if err := copyRecords(src, w, allTiles(old.Objects)); err != nil {
				return err
			}
			if err := w.WriteMapHeader(); err != nil {
				return err
			}

			in := make([]byte, old.Width)
			out := emptyRow(width)
			for y := 0; y < int(old.Height); y++ {
				if err := src.ReadRow(y, in); err != nil {
					return err
				}
				copy(out, in)
				if err := w.WriteRow(out); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	})
}

// SetHeight resizes the grid to height rows. Growth inserts empty rows
// above the first row and shrinking drops rows from the top, so the bottom
// of the map stays in place.
func (e *Editor) SetHeight(ctx context.Context, path string, height uint32) (Result, error) {
	if height == 0 {
		return Result{}, fmt.Errorf("set height %s: %w", path, ErrInvalidDimension)
	}

	return e.mutate(ctx, "set height", path, func(src *formats.Reader) (*plan, error) {
		old := src.Layout()
		if old.Height == height {
			return nil, nil
		}

		l := formats.NewLayout(old.Objects, old.Width, height)
		return &plan{layout: l, fill: func(w *formats.Writer) error {
			if err := copyRecords(src, w, allTiles(old.Objects)); err != nil {
				return err
			}
			if err := w.WriteMapHeader(); err != nil {
				return err
			}

			first := 0
			if height > old.Height {
				empty := emptyRow(old.Width)
				for i := uint32(0); i < height-old.Height; i++ {
					if err := w.WriteRow(empty); err != nil {
						return err
					}
				}
			} else {
				first = int(old.Height - height)
			}

			row := make([]byte, old.Width)
			for y := first; y < int(old.Height); y++ {
				if err := src.ReadRow(y, row); err != nil {
					return err
				}
				if err := w.WriteRow(row); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	})
}

// SetObjects replaces the catalog with defs. Cells are copied unchanged. A
// catalog smaller than the current one is refused as a no-op, since cells
// could be left pointing past its end.
func (e *Editor) SetObjects(ctx context.Context, path string, defs []formats.TileDef) (Result, error) {
	if len(defs) > formats.MaxObjects {
		return Result{}, fmt.Errorf("set objects %s: %w: %d", path, formats.ErrTooManyObjects, len(defs))
	}

	return e.mutate(ctx, "set objects", path, func(src *formats.Reader) (*plan, error) {
		old := src.Layout()
		if len(defs) < old.Objects {
			e.log.Warn("New catalog is smaller than the current one, not replacing",
				zap.Int("current", old.Objects), zap.Int("new", len(defs)))
			return nil, nil
		}

		l := formats.NewLayout(len(defs), old.Width, old.Height)
		return &plan{layout: l, fill: func(w *formats.Writer) error {
			for _, def := range defs {
				if err := w.WritePath(def.Path); err != nil {
					return err
				}
			}
			for _, def := range defs {
				if err := w.WriteProperties(def); err != nil {
					return err
				}
			}
			if err := w.WriteMapHeader(); err != nil {
				return err
			}

			row := make([]byte, old.Width)
			for y := 0; y < int(old.Height); y++ {
				if err := src.ReadRow(y, row); err != nil {
					return err
				}
				if err := w.WriteRow(row); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	})
}

// Prune drops catalog entries no cell references. Survivors keep their
// relative order and are renumbered densely; cells are remapped to match.
func (e *Editor) Prune(ctx context.Context, path string) (Result, error) {
	return e.mutate(ctx, "prune", path, func(src *formats.Reader) (*plan, error) {
		old := src.Layout()

		used, err := usage(src)
		if err != nil {
			return nil, err
		}

		var survivors []int
		remap := [formats.MaxObjects + 1]formats.Cell{}
		for i := range remap {
			remap[i] = formats.CellNone
		}
		for i := 0; i < old.Objects; i++ {
			if used[i] > 0 {
				remap[i] = formats.Cell(len(survivors))
				survivors = append(survivors, i)
			}
		}
		if len(survivors) == old.Objects {
			return nil, nil
		}
		e.log.Debug("Pruning catalog",
			zap.Int("objects", old.Objects), zap.Int("kept", len(survivors)))

		l := formats.NewLayout(len(survivors), old.Width, old.Height)
		return &plan{layout: l, fill: func(w *formats.Writer) error {
			if err := copyRecords(src, w, survivors); err != nil {
				return err
			}
			if err := w.WriteMapHeader(); err != nil {
				return err
			}

			row := make([]byte, old.Width)
			for y := 0; y < int(old.Height); y++ {
				if err := src.ReadRow(y, row); err != nil {
					return err
				}
				for x, c := range row {
					row[x] = byte(remap[c])
				}
				if err := w.WriteRow(row); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	})
}

// usage counts the cells referencing each catalog index.
func usage(src *formats.Reader) ([formats.MaxObjects]int, error) {
	var used [formats.MaxObjects]int
	l := src.Layout()
	row := make([]byte, l.Width)
	for y := 0; y < int(l.Height); y++ {
		if err := src.ReadRow(y, row); err != nil {
			return used, err
		}
		for x, b := range row {
			c := formats.Cell(b)
			if c.IsNone() {
				continue
			}
			if int(c) >= l.Objects {
				return used, fmt.Errorf("%w: cell (%d,%d) = %d at offset [%x], catalog has %d tiles",
					formats.ErrCellOutOfRange, x, y, c, int64(src.Header().MapOffset)+formats.MapHeaderSize+int64(y)*int64(l.Width)+int64(x), l.Objects)
			}
			used[c]++
		}
	}
	return used, nil
}
