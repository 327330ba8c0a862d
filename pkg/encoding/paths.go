// Package encoding converts tile paths between the bytes stored in map
// archives and text for display and lookup.
package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// LegacyToUTF8 converts path bytes written by older, Latin-1 based editors to
// UTF-8. Data that is already valid UTF-8 is returned unchanged.
func LegacyToUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// DisplayPath returns a stored tile path as printable UTF-8.
func DisplayPath(path string) string {
	return LegacyToUTF8([]byte(path))
}

// NormalizePath converts a user-supplied tile path to the stored form:
// forward slashes, no leading "./".
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	for strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	return path
}
