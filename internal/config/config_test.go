package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"regionmap/internal/regionsrc"
	"regionmap/internal/theme"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"ADDR", "API_BASE", "FETCH_TIMEOUT_MS", "THEME_STORE", "RATE_LIMIT_QPS", "LOCATE_MAX_KM"} {
		t.Setenv(k, "")
	}
	e := FromEnv()
	assert.Equal(t, ":8080", e.Addr)
	assert.Equal(t, "/api", e.APIBase)
	assert.Equal(t, 10*time.Second, e.FetchTimeout)
	assert.Equal(t, "memory", e.ThemeStore)
	assert.Equal(t, 150.0, e.LocateMaxKm)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("FETCH_TIMEOUT_MS", "250")
	t.Setenv("PG_ENABLED", "true")
	t.Setenv("SOURCE_CACHE_TTL_S", "-4")
	e := FromEnv()
	assert.Equal(t, ":9000", e.Addr)
	assert.Equal(t, 250*time.Millisecond, e.FetchTimeout)
	assert.True(t, e.PGEnabled)
	assert.Equal(t, time.Hour, e.SourceTTL, "negative falls back to default")
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	require.NoError(t, p.Validate())
	assert.Equal(t, "/tr-cities.json", p.Sources[0].URL)
	assert.Equal(t, "/turkey-il.json", p.Sources[1].URL)
	assert.Equal(t, orb.Point{35.24, 38.68}, p.Center.Point())

	vc := p.Viewport()
	assert.Equal(t, orb.Point{25.5, 35.5}, vc.MaxBounds.Min)
	assert.Equal(t, orb.Point{45.0, 42.5}, vc.MaxBounds.Max)
	assert.Equal(t, 5, vc.MinZoom)
	assert.Equal(t, 12, vc.MaxZoom)
	assert.Equal(t, 1.0, vc.Viscosity)
	assert.Contains(t, p.BaseLayer(theme.Dark).Template, "dark_all")
	assert.Contains(t, p.BaseLayer(theme.Light).Template, "light_all")
	assert.Len(t, p.Charts, 4)
}

func TestParseProfileOverlaysDefaults(t *testing.T) {
	p, err := ParseProfile([]byte(`
name: tr-topo
sources:
  - url: /turkey.topo.json
    format: topojson
object: provinces
max_zoom: 10
tiles:
  dark:
    template: "https://tiles.example/dark/{z}/{x}/{y}.png"
`))
	require.NoError(t, err)
	assert.Equal(t, "tr-topo", p.Name)
	require.Len(t, p.Sources, 1)
	assert.Equal(t, regionsrc.FormatTopoJSON, p.Sources[0].Format)
	assert.Equal(t, "provinces", p.IndexOptions().Object)
	assert.Equal(t, 10, p.MaxZoom)
	assert.Equal(t, 5, p.MinZoom)
	assert.Equal(t, "https://tiles.example/dark/{z}/{x}/{y}.png", p.BaseLayer(theme.Dark).Template)
	assert.Contains(t, p.BaseLayer(theme.Light).Template, "light_all")
}

func TestParseProfileRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field": "colour: red\n",
		"bad format":    "sources: [{url: /a.json, format: kml}]\n",
		"no url":        "sources: [{format: geojson}]\n",
		"zoom range":    "min_zoom: 9\nmax_zoom: 3\n",
		"no sources":    "sources: []\n",
	}
	for name, doc := range cases {
		_, err := ParseProfile([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadProfile(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "tr-provinces", p.Name)

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zoom: 7\n"), 0o644))
	p, err = LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Zoom)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
