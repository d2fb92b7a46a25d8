// Package io reads assets from disk: model directories, OBJ/MTL and glTF
// files, the YAML scene layout, and shader sources.
package io

import (
	"bufio"
	"errors"
	"fmt"
	stdio "io"
	"path/filepath"
	"strings"
)

// ManifestName is the file every model directory lists its contents in.
const ManifestName = "dir.txt"

// ErrManifest is returned for an empty or malformed manifest.
var ErrManifest = errors.New("invalid manifest")

// ReadManifest returns the file names listed in r, one per line. Blank
// lines and lines starting with '#' are skipped. Entries must be relative
// paths that stay inside the directory.
func ReadManifest(r stdio.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		name := strings.TrimSpace(sc.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		clean := filepath.Clean(filepath.FromSlash(name))
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%w: line %d: %q escapes the directory", ErrManifest, line, name)
		}
		names = append(names, filepath.ToSlash(clean))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrManifest)
	}
	return names, nil
}
