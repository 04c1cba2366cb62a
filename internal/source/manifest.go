// Package source loads the upstream playlist manifest and fetches playlist
// bodies concurrently.
package source

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is one upstream playlist provider.
type Source struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled defaults to true when the manifest omits the flag.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Manifest is the YAML document listing upstream sources.
type Manifest struct {
	Sources []Source `yaml:"sources"`
}

// LoadManifest reads and validates a source manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse source manifest: %w", err)
	}

	if len(manifest.Sources) == 0 {
		return nil, errors.New("source manifest lists no sources")
	}
	seen := make(map[string]struct{}, len(manifest.Sources))
	for i, src := range manifest.Sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		if strings.TrimSpace(src.URL) == "" {
			return nil, fmt.Errorf("source %q: url is required", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("source %q: duplicate name", name)
		}
		seen[name] = struct{}{}
	}

	return &manifest, nil
}

// Enabled returns the subset of sources that should be fetched.
func (m *Manifest) Enabled() []Source {
	if m == nil {
		return nil
	}
	enabled := make([]Source, 0, len(m.Sources))
	for _, src := range m.Sources {
		if src.IsEnabled() {
			enabled = append(enabled, src)
		}
	}
	return enabled
}
