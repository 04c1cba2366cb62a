// Package catalog emits the media-addon catalog files consumed by player
// frontends: one manifest plus one catalog document per genre.
package catalog

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/streamlens/streamlens/internal/core"
	"github.com/streamlens/streamlens/internal/filter"
)

// Manifest describes the addon to the player frontend.
type Manifest struct {
	ID          string       `json:"id"`
	Version     string       `json:"version"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Resources   []string     `json:"resources"`
	Types       []string     `json:"types"`
	Catalogs    []CatalogRef `json:"catalogs"`
}

// CatalogRef is one catalog entry advertised by the manifest.
type CatalogRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Meta is one channel entry inside a catalog document.
type Meta struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Poster  string   `json:"poster,omitempty"`
	Genres  []string `json:"genres,omitempty"`
	Country string   `json:"country,omitempty"`
	URL     string   `json:"url"`
}

// Document is the on-disk shape of one genre catalog.
type Document struct {
	Metas []Meta `json:"metas"`
}

// Generator writes catalog files for a validated channel set.
type Generator struct {
	OutputDir   string
	AddonID     string
	AddonName   string
	Description string
	Version     string
}

// NewGenerator applies the generator defaults.
func NewGenerator(outputDir string) *Generator {
	return &Generator{
		OutputDir:   outputDir,
		AddonID:     "com.streamlens.tv",
		AddonName:   "StreamLens TV",
		Description: "Validated live TV channels aggregated from public playlists",
		Version:     "1.0.0",
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a genre name into a filename-safe catalog id.
func Slug(genre string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(genre), "-")
	return strings.Trim(slug, "-")
}

// MetaID derives a stable channel id, preferring the playlist tvg-id and
// falling back to a URL digest.
func MetaID(ch core.Channel) string {
	if ch.ID != "" {
		return "streamlens:" + ch.ID
	}
	sum := sha1.Sum([]byte(ch.URL))
	return "streamlens:" + hex.EncodeToString(sum[:8])
}

// Write emits the manifest and one catalog document per genre to the output
// directory. It returns the number of files written.
func (g *Generator) Write(channels []core.Channel) (int, error) {
	if g.OutputDir == "" {
		return 0, fmt.Errorf("catalog output directory is required")
	}

	catalogDir := filepath.Join(g.OutputDir, "catalog", "tv")
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		return 0, fmt.Errorf("create catalog directory: %w", err)
	}

	byGenre := make(map[string][]core.Channel)
	for _, ch := range channels {
		genre := ch.Group
		if genre == "" {
			genre = "Other"
		}
		byGenre[genre] = append(byGenre[genre], ch)
	}

	genres := filter.Groups(channels)
	if _, hasOther := byGenre["Other"]; hasOther && !slices.Contains(genres, "Other") {
		genres = append(genres, "Other")
	}

	written := 0
	refs := make([]CatalogRef, 0, len(genres))
	for _, genre := range genres {
		slug := Slug(genre)
		if slug == "" {
			continue
		}
		doc := Document{Metas: make([]Meta, 0, len(byGenre[genre]))}
		for _, ch := range byGenre[genre] {
			doc.Metas = append(doc.Metas, Meta{
				ID:      MetaID(ch),
				Type:    "tv",
				Name:    ch.Name,
				Poster:  ch.Logo,
				Genres:  []string{genre},
				Country: ch.Country,
				URL:     ch.URL,
			})
		}
		path := filepath.Join(catalogDir, slug+".json")
		if err := writeJSON(path, doc); err != nil {
			return written, err
		}
		written++
		refs = append(refs, CatalogRef{Type: "tv", ID: slug, Name: genre})
	}

	manifest := Manifest{
		ID:          g.AddonID,
		Version:     g.Version,
		Name:        g.AddonName,
		Description: g.Description,
		Resources:   []string{"catalog"},
		Types:       []string{"tv"},
		Catalogs:    refs,
	}
	if err := writeJSON(filepath.Join(g.OutputDir, "manifest.json"), manifest); err != nil {
		return written, err
	}
	written++

	return written, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
