// Package formats provides the codec for MARC tile-map archives.
//
// A MARC archive holds a catalog of tile definitions (path table and
// property table) followed by a MAPF block with the tile grid:
//
//	0x00  "MARC" | tile count N | property table offset | MAPF offset
//	0x10  N x 64-byte null-terminated paths
//	      N x 32-byte property records
//	      "MAPF" | width | height | width*height | cells (1 byte each)
//	      zero padding to a 16-byte boundary
package formats
