package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSearches(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	write("b.yaml", "id: bk\nborough: brooklyn\nquery:\n  max_price: 900000\n  neighborhoods: [Williamsburg]\n")
	write("a.yml", "borough: manhattan\nquery:\n  area_ids: [300]\n  max_pages: 2\n")
	write("notes.txt", "ignored")

	presets, err := LoadSearches(dir)
	require.NoError(t, err)
	require.Len(t, presets, 2)

	assert.Equal(t, "a", presets[0].ID, "id falls back to file name")
	assert.Equal(t, []int{300}, presets[0].Query.AreaIDs)
	assert.Equal(t, 2, presets[0].Query.Pages())

	assert.Equal(t, "bk", presets[1].ID)
	assert.Equal(t, 900000, presets[1].Query.MaxPrice)
	assert.Equal(t, []string{"Williamsburg"}, presets[1].Query.Neighborhoods)
}

func TestLoadSearchesMissingDir(t *testing.T) {
	presets, err := LoadSearches(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, presets)
}

func TestLoadSearchesBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("query: [unclosed"), 0644))

	_, err := LoadSearches(dir)
	assert.Error(t, err)
}

func TestCatalogOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("areas:\n  DUMBO: 105\nproperty_types:\n  Townhouse: D4\n"), 0644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	id, ok := c.AreaID("dumbo")
	assert.True(t, ok)
	assert.Equal(t, 105, id)
	id, ok = c.AreaID("  Dumbo ")
	assert.True(t, ok)
	assert.Equal(t, 105, id)
	assert.Equal(t, []int{100, 101, 105, 300}, c.AllAreaIDs())
	assert.Equal(t, "D4", c.TypeCode("townhouse"))
	assert.Equal(t, "D1", c.TypeCode(" Condo "))
	assert.Equal(t, "", c.TypeCode("castle"))
}

func TestCatalogMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog().Areas, c.Areas)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "x")
	t.Setenv("TEST_DUR", "90s")

	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Second))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET_KEY", "fallback"))
}
