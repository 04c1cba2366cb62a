package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamlens/streamlens/internal/core"
)

func TestWriteEmitsManifestAndGenreCatalogs(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir)

	channels := []core.Channel{
		{ID: "news.one", Name: "News One", URL: "http://203.0.113.1/news", Group: "News", Logo: "http://cdn/news.png"},
		{Name: "Sports Central", URL: "http://203.0.113.2/sports", Group: "Sports", Country: "DE"},
		{Name: "Orphan", URL: "http://203.0.113.3/orphan"},
	}

	written, err := gen.Write(channels)
	require.NoError(t, err)
	require.Equal(t, 4, written, "three genre catalogs plus the manifest")

	var manifest Manifest
	readJSON(t, filepath.Join(dir, "manifest.json"), &manifest)
	require.Equal(t, "com.streamlens.tv", manifest.ID)
	require.Equal(t, []string{"tv"}, manifest.Types)
	require.Len(t, manifest.Catalogs, 3)
	require.Equal(t, "news", manifest.Catalogs[0].ID)
	require.Equal(t, "News", manifest.Catalogs[0].Name)

	var news Document
	readJSON(t, filepath.Join(dir, "catalog", "tv", "news.json"), &news)
	require.Len(t, news.Metas, 1)
	require.Equal(t, "streamlens:news.one", news.Metas[0].ID)
	require.Equal(t, "http://cdn/news.png", news.Metas[0].Poster)

	var other Document
	readJSON(t, filepath.Join(dir, "catalog", "tv", "other.json"), &other)
	require.Len(t, other.Metas, 1)
	require.Equal(t, "Orphan", other.Metas[0].Name)
}

func TestMetaIDStableForURLFallback(t *testing.T) {
	ch := core.Channel{Name: "No TVG", URL: "http://203.0.113.9/x"}
	first := MetaID(ch)
	require.Equal(t, first, MetaID(ch))
	require.Contains(t, first, "streamlens:")
	require.NotEqual(t, first, MetaID(core.Channel{URL: "http://203.0.113.9/y"}))
}

func TestSlug(t *testing.T) {
	require.Equal(t, "news", Slug("News"))
	require.Equal(t, "kids-family", Slug("Kids & Family"))
	require.Equal(t, "", Slug("!!!"))
}

func TestWriteRequiresOutputDir(t *testing.T) {
	_, err := (&Generator{}).Write(nil)
	require.Error(t, err)
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}
