// maputil is a CLI utility for inspecting and editing MARC map archives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/marc/internal/config"
	"github.com/Faultbox/marc/internal/logger"
	"github.com/Faultbox/marc/pkg/archive"
	"github.com/Faultbox/marc/pkg/backup"
	"github.com/Faultbox/marc/pkg/encoding"
	"github.com/Faultbox/marc/pkg/formats"
	"github.com/Faultbox/marc/pkg/tilemap"
)

// errUsage marks a malformed command line; the usage text has been printed.
var errUsage = errors.New("invalid arguments")

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := logger.DefaultOptions(cfg.Logging.Level, cfg.Logging.LogFile)
	opts.MaxSizeMB = cfg.Logging.MaxSizeMB
	opts.MaxBackups = cfg.Logging.MaxBackups
	if err := logger.InitWithOptions(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := flag.Args()
	if len(args) < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(cfg, os.Stdout)
	if err := a.run(ctx, args[0], args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			logger.Error("Command failed", zap.String("command", args[0]), zap.Error(err))
		}
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `maputil - MARC map archive utility

Usage:
  maputil [-config file] [-debug] [-log-file file] <command> [options]

Commands:
  width <file>                        Print the map width
  height <file>                       Print the map height
  objects <file>                      Print the number of tiles in the catalog
  info <file>                         Print all of the above
  set-width <file> <n>                Resize columns (right edge)
  set-height <file> <n>               Resize rows (top edge)
  set-objects [-O tuple]... [-from catalog.yaml] <file>
                                      Replace the tile catalog
  prune <file>                        Drop tiles no cell uses
  new [-width n] [-height n] [-f] <file>
                                      Create a starter map
  dump <file>                         Print the catalog and grid
  restore <backup> <file>             Copy a backup over a map
  init-config [file]                  Write the default configuration

Tile tuple:
  "-p <path> -f <frames> -s solid|semi-solid|air -d destructible|not-destructible
   -c collectible|not-collectible -g generator|not-generator"

Examples:
  maputil info level1.map
  maputil set-width level1.map 128
  maputil set-objects -O "-p images/ground.png -f 1 -s solid -d not-destructible -c not-collectible -g not-generator" level1.map
  maputil restore level1.map-07-03-2024-09:05:03.backup level1.map`)
}

type app struct {
	cfg    *config.Config
	out    io.Writer
	guard  *backup.Guard
	editor *archive.Editor
}

func newApp(cfg *config.Config, out io.Writer) *app {
	guard := backup.New(cfg.Backup, backup.WithLogger(logger.Named("backup")))
	return &app{
		cfg:    cfg,
		out:    out,
		guard:  guard,
		editor: archive.NewEditor(archive.WithGuard(guard), archive.WithLogger(logger.Named("archive"))),
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "width", "height", "objects", "info":
		return a.cmdQuery(command, args)
	case "set-width":
		return a.cmdResize(ctx, command, args, a.editor.SetWidth)
	case "set-height":
		return a.cmdResize(ctx, command, args, a.editor.SetHeight)
	case "set-objects":
		return a.cmdSetObjects(ctx, args)
	case "prune":
		return a.cmdPrune(ctx, args)
	case "new":
		return a.cmdNew(args)
	case "dump":
		return a.cmdDump(args)
	case "restore":
		return a.cmdRestore(ctx, args)
	case "init-config":
		return a.cmdInitConfig(args)
	case "help", "-h", "--help":
		printUsage(a.out)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		return errUsage
	}
}

func usage(line string) error {
	fmt.Fprintln(os.Stderr, "Usage: maputil "+line)
	return errUsage
}

func (a *app) cmdQuery(command string, args []string) error {
	if len(args) != 1 {
		return usage(command + " <file>")
	}

	info, err := archive.ReadInfo(args[0])
	if err != nil {
		return err
	}

	switch command {
	case "width":
		fmt.Fprintf(a.out, "Map width        : [%6d]\n", info.Width)
	case "height":
		fmt.Fprintf(a.out, "Map height       : [%6d]\n", info.Height)
	case "objects":
		fmt.Fprintf(a.out, "Number of objects: [%6d]\n", info.Objects)
	default:
		fmt.Fprintf(a.out, "Map width        : [%6d]\n", info.Width)
		fmt.Fprintf(a.out, "Map height       : [%6d]\n", info.Height)
		fmt.Fprintf(a.out, "Number of objects: [%6d]\n", info.Objects)
		fmt.Fprintf(a.out, "File size        : [%6d]\n", info.Size)
	}
	return nil
}

func (a *app) cmdResize(ctx context.Context, command string, args []string,
	resize func(context.Context, string, uint32) (archive.Result, error)) error {
	if len(args) != 2 {
		return usage(command + " <file> <n>")
	}

	n, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", args[1], err)
	}

	res, err := resize(ctx, args[0], uint32(n))
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *app) cmdSetObjects(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-objects", flag.ContinueOnError)
	var tuples tupleList
	fs.Var(&tuples, "O", "Tile tuple, repeat once per tile")
	from := fs.String("from", "", "YAML catalog file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 || (len(tuples) == 0 && *from == "") {
		return usage(`set-objects [-O "tuple"]... [-from catalog.yaml] <file>`)
	}

	var defs []formats.TileDef
	if *from != "" {
		loaded, err := loadCatalog(*from)
		if err != nil {
			return err
		}
		defs = append(defs, loaded...)
	}
	defs = append(defs, tuples...)

	res, err := a.editor.SetObjects(ctx, fs.Arg(0), defs)
	if err != nil {
		return err
	}
	if !res.Changed {
		fmt.Fprintf(a.out, "Catalog not replaced: %d tiles given, map has %d\n", len(defs), res.Before.Objects)
		return nil
	}
	a.report(res)
	return nil
}

func (a *app) cmdPrune(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("prune <file>")
	}

	res, err := a.editor.Prune(ctx, args[0])
	if err != nil {
		return err
	}
	if res.Changed {
		fmt.Fprintf(a.out, "Removed %d unused tiles\n", res.Before.Objects-res.After.Objects)
	}
	a.report(res)
	return nil
}

func (a *app) report(res archive.Result) {
	if !res.Changed {
		fmt.Fprintln(a.out, "Nothing to do")
		return
	}
	fmt.Fprintf(a.out, "Map successfully saved! [%x] bytes written!\n", res.After.Size)
	fmt.Fprintf(a.out, "Backup: %s\n", res.Backup)
}

func (a *app) cmdNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	width := fs.Int("width", a.cfg.Editor.Width, "Map width in tiles")
	height := fs.Int("height", a.cfg.Editor.Height, "Map height in tiles")
	force := fs.Bool("f", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return usage("new [-width n] [-height n] [-f] <file>")
	}

	path := fs.Arg(0)
	if !*force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -f to overwrite)", path)
		}
	}

	m, err := tilemap.NewSample(a.cfg.Editor.Bounds, *width, *height)
	if err != nil {
		return err
	}
	if err := m.Save(path); err != nil {
		return err
	}

	logger.Debug("Sample map created", zap.String("file", path), zap.Int("width", *width), zap.Int("height", *height))
	fmt.Fprintf(a.out, "Map successfully saved! [%x] bytes written!\n", m.Layout().Size())
	return nil
}

func (a *app) cmdDump(args []string) error {
	if len(args) != 1 {
		return usage("dump <file>")
	}

	m := tilemap.New(tilemap.AnyProfile)
	if err := m.Load(args[0]); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Map: %s (%dx%d)\n\n", args[0], m.Width(), m.Height())
	fmt.Fprintf(a.out, "Tiles: %d\n", m.Objects())
	for i := 0; i < m.Objects(); i++ {
		def := m.Object(i)
		fmt.Fprintf(a.out, "  [%3d] %-40s frames=%-3d %s\n", i, encoding.DisplayPath(def.Path), def.Frames, def.Properties)
	}
	fmt.Fprintf(a.out, "Collectibles: %d\n\n", m.CollectibleCount())

	line := make([]byte, 0, m.Width()*3)
	for y := 0; y < m.Height(); y++ {
		line = line[:0]
		for x := 0; x < m.Width(); x++ {
			c := m.Get(x, y)
			if c.IsNone() {
				line = append(line, "  ."...)
			} else {
				line = append(line, fmt.Sprintf("%3d", c)...)
			}
		}
		fmt.Fprintf(a.out, "%s\n", line)
	}
	return nil
}

func (a *app) cmdRestore(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("restore <backup> <file>")
	}
	if err := a.guard.Restore(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Restored %s from %s\n", args[1], args[0])
	return nil
}

func (a *app) cmdInitConfig(args []string) error {
	if len(args) > 1 {
		return usage("init-config [file]")
	}

	path := config.DefaultPath()
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.Default().SaveTo(path); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %s\n", path)
	return nil
}
