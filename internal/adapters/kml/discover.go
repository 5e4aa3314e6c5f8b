package kml

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Area is one KML boundary found on disk.
type Area struct {
	Path string
	// Rel is Path relative to the directory passed to Discover.
	Rel string
	// Force is the parent directory name when files are grouped per police
	// force, empty for files at the top level.
	Force string
	Name  string
}

// Discover lists .kml files in dir and in its immediate subdirectories,
// the layout police.uk uses for its neighbourhood boundary downloads.
func Discover(dir string) ([]Area, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("kml: read %s: %w", dir, err)
	}

	var areas []Area
	for _, e := range entries {
		if e.IsDir() {
			sub := filepath.Join(dir, e.Name())
			files, err := os.ReadDir(sub)
			if err != nil {
				return nil, fmt.Errorf("kml: read %s: %w", sub, err)
			}
			for _, f := range files {
				if !f.IsDir() && isKML(f.Name()) {
					areas = append(areas, Area{
						Path:  filepath.Join(sub, f.Name()),
						Rel:   filepath.Join(e.Name(), f.Name()),
						Force: e.Name(),
						Name:  stem(f.Name()),
					})
				}
			}
			continue
		}
		if isKML(e.Name()) {
			areas = append(areas, Area{Path: filepath.Join(dir, e.Name()), Rel: e.Name(), Name: stem(e.Name())})
		}
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Path < areas[j].Path })
	return areas, nil
}

func isKML(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".kml")
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
