// Package catalog holds the static, ordered list of playable tracks.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ostplayer/pkg/models"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ErrEmptyPath is returned when no catalog file was configured
var ErrEmptyPath = errors.New("catalog path is empty")

// Entry pairs a track with its position in the catalog
type Entry struct {
	Index int          `json:"index"`
	Track models.Track `json:"track"`
}

// Catalog is immutable once built; tracks are referenced by index.
type Catalog struct {
	tracks []models.Track
}

// file is the on-disk layout shared by the TOML and YAML formats
type file struct {
	Tracks []models.Track `toml:"tracks" yaml:"tracks"`
}

// New builds a catalog from tracks, clamping ratings into 0..MaxRating
func New(tracks []models.Track) *Catalog {
	owned := make([]models.Track, len(tracks))
	copy(owned, tracks)
	for i := range owned {
		owned[i].Rating = min(max(owned[i].Rating, 0), models.MaxRating)
	}
	return &Catalog{tracks: owned}
}

// Load reads a catalog from a .toml, .yaml or .yml file
func Load(path string) (*Catalog, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("failed to parse TOML catalog: %w", err)
		}
	}

	for i, t := range f.Tracks {
		if t.AudioURL == "" {
			return nil, fmt.Errorf("track %d (%q) has no audio source", i, t.Title)
		}
	}

	return New(f.Tracks), nil
}

// Save writes tracks as a TOML catalog
func Save(path string, tracks []models.Track) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	defer out.Close()

	if err := toml.NewEncoder(out).Encode(file{Tracks: tracks}); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return nil
}

// Len returns the number of tracks
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tracks)
}

// Track returns the track at index
func (c *Catalog) Track(index int) (models.Track, bool) {
	if index < 0 || index >= c.Len() {
		return models.Track{}, false
	}
	return c.tracks[index], true
}

// Tracks returns a copy of all tracks
func (c *Catalog) Tracks() []models.Track {
	result := make([]models.Track, c.Len())
	if c != nil {
		copy(result, c.tracks)
	}
	return result
}

// Featured returns the featured tracks with their catalog indices
func (c *Catalog) Featured() []Entry {
	return c.filter(func(t models.Track) bool { return t.Featured })
}

// Popular returns the popular tracks with their catalog indices
func (c *Catalog) Popular() []Entry {
	return c.filter(func(t models.Track) bool { return t.Popular })
}

// Search returns tracks whose title or artist contains query (case-insensitive)
func (c *Catalog) Search(query string) []Entry {
	q := normalizeQuery(query)
	return c.filter(func(t models.Track) bool { return matches(t, q) })
}

// Narrow keeps the entries Search would return for query
func Narrow(entries []Entry, query string) []Entry {
	q := normalizeQuery(query)
	return lo.Filter(entries, func(e Entry, _ int) bool { return matches(e.Track, q) })
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func matches(t models.Track, q string) bool {
	return q == "" ||
		strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Artist), q)
}

func (c *Catalog) filter(keep func(models.Track) bool) []Entry {
	entries := lo.Map(c.Tracks(), func(t models.Track, i int) Entry {
		return Entry{Index: i, Track: t}
	})
	return lo.Filter(entries, func(e Entry, _ int) bool {
		return keep(e.Track)
	})
}

// Constrain maps any index into [0, Len). It returns 0 for an empty catalog.
func (c *Catalog) Constrain(index int) int {
	n := c.Len()
	if n == 0 || index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}
