package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/marc/pkg/encoding"
	"github.com/Faultbox/marc/pkg/formats"
)

// tupleList collects repeated -O flags into tile definitions.
type tupleList []formats.TileDef

func (l *tupleList) String() string {
	return fmt.Sprintf("%d tiles", len(*l))
}

func (l *tupleList) Set(s string) error {
	def, err := parseTuple(s)
	if err != nil {
		return err
	}
	*l = append(*l, def)
	return nil
}

// switchValue parses a two-word switch such as collectible|not-collectible.
func switchValue(name, value string) (bool, error) {
	switch strings.ToLower(value) {
	case name:
		return true, nil
	case "not-" + name:
		return false, nil
	}
	return false, fmt.Errorf("-%c must be %s or not-%s, got %q", name[0], name, name, value)
}

// parseTuple parses one tile description:
//
//	-p <path> -f <frames> -s solid|semi-solid|air -d [not-]destructible
//	-c [not-]collectible -g [not-]generator
//
// Every option is required.
func parseTuple(s string) (formats.TileDef, error) {
	fs := flag.NewFlagSet("tuple", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("p", "", "")
	frames := fs.String("f", "", "")
	solid := fs.String("s", "", "")
	destructible := fs.String("d", "", "")
	collectible := fs.String("c", "", "")
	generator := fs.String("g", "", "")

	if err := fs.Parse(strings.Fields(s)); err != nil {
		return formats.TileDef{}, fmt.Errorf("tuple %q: %w", s, err)
	}
	if fs.NArg() > 0 {
		return formats.TileDef{}, fmt.Errorf("tuple %q: unexpected %q", s, fs.Arg(0))
	}

	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	for _, name := range []string{"p", "f", "s", "d", "c", "g"} {
		if !seen[name] {
			return formats.TileDef{}, fmt.Errorf("tuple %q: missing -%s", s, name)
		}
	}

	def, err := buildDef(*path, *frames, *solid, *destructible, *collectible, *generator)
	if err != nil {
		return formats.TileDef{}, fmt.Errorf("tuple %q: %w", s, err)
	}
	return def, nil
}

func buildDef(path, frames, solid, destructible, collectible, generator string) (formats.TileDef, error) {
	path = encoding.NormalizePath(path)
	if path == "" {
		return formats.TileDef{}, errors.New("empty path")
	}
	if len(path) > formats.MaxPathLen {
		return formats.TileDef{}, fmt.Errorf("path %q longer than %d bytes", path, formats.MaxPathLen)
	}
	n, err := strconv.ParseUint(frames, 10, 32)
	if err != nil {
		return formats.TileDef{}, fmt.Errorf("invalid frame count %q", frames)
	}
	s, err := formats.ParseSolidity(solid)
	if err != nil {
		return formats.TileDef{}, err
	}
	d, err := switchValue("destructible", destructible)
	if err != nil {
		return formats.TileDef{}, err
	}
	c, err := switchValue("collectible", collectible)
	if err != nil {
		return formats.TileDef{}, err
	}
	g, err := switchValue("generator", generator)
	if err != nil {
		return formats.TileDef{}, err
	}

	return formats.TileDef{
		Path:       path,
		Frames:     uint32(n),
		Properties: formats.NewTileProperty(s, d, c, g),
	}, nil
}

// catalogEntry is one tile of a YAML catalog file.
type catalogEntry struct {
	Path         string `yaml:"path"`
	Frames       uint32 `yaml:"frames"`
	Solidity     string `yaml:"solidity"`
	Destructible bool   `yaml:"destructible"`
	Collectible  bool   `yaml:"collectible"`
	Generator    bool   `yaml:"generator"`
}

type catalogFile struct {
	Tiles []catalogEntry `yaml:"tiles"`
}

// loadCatalog reads tile definitions from a YAML file.
func loadCatalog(path string) ([]formats.TileDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cat catalogFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	defs := make([]formats.TileDef, 0, len(cat.Tiles))
	for i, e := range cat.Tiles {
		e.Path = encoding.NormalizePath(e.Path)
		if e.Path == "" {
			return nil, fmt.Errorf("catalog %s: tile %d has no path", path, i)
		}
		if len(e.Path) > formats.MaxPathLen {
			return nil, fmt.Errorf("catalog %s: tile %d path longer than %d bytes", path, i, formats.MaxPathLen)
		}
		s, err := formats.ParseSolidity(e.Solidity)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: tile %d: %w", path, i, err)
		}
		defs = append(defs, formats.TileDef{
			Path:       e.Path,
			Frames:     e.Frames,
			Properties: formats.NewTileProperty(s, e.Destructible, e.Collectible, e.Generator),
		})
	}
	return defs, nil
}
