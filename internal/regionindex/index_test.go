package regionindex

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"regionmap/internal/regionsrc"
	"regionmap/internal/topojson"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// provincesTopology lays out n unit squares on a 9-wide grid starting at
// lon 26, lat 36, one arc per square, under the object "provinces". A
// "borders" object comes first in the document.
func provincesTopology(t *testing.T, n int) []byte {
	t.Helper()
	geoms := make([]map[string]any, 0, n)
	arcs := make([][][]float64, 0, n)
	for i := 0; i < n; i++ {
		x, y := 26+float64(i%9), 36+float64(i/9)*0.5
		arcs = append(arcs, [][]float64{{x, y}, {x + 1, y}, {x + 1, y + 0.5}, {x, y + 0.5}, {x, y}})
		geoms = append(geoms, map[string]any{
			"type":       "Polygon",
			"properties": map[string]any{"name": fmt.Sprintf("İl %d", i+1)},
			"arcs":       [][]int{{i}},
		})
	}
	doc := fmt.Sprintf(`{"type":"Topology","objects":{"borders":{"type":"MultiLineString","arcs":[[0]]},"provinces":{"type":"GeometryCollection","geometries":%s}},"arcs":%s}`,
		mustJSON(t, geoms), mustJSON(t, arcs))
	return []byte(doc)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func decodeTopo(t *testing.T, doc []byte) regionsrc.Decoded {
	t.Helper()
	topo, err := topojson.Decode(doc)
	require.NoError(t, err)
	return regionsrc.Decoded{Format: regionsrc.FormatTopoJSON, Topology: topo}
}

func decodeGeo(t *testing.T, doc string) regionsrc.Decoded {
	t.Helper()
	fc, err := geojson.UnmarshalFeatureCollection([]byte(doc))
	require.NoError(t, err)
	return regionsrc.Decoded{Format: regionsrc.FormatGeoJSON, Collection: fc}
}

func TestBuildEightyOneProvinces(t *testing.T) {
	opts := DefaultOptions()
	opts.Object = "provinces"
	ix, st, err := Build(decodeTopo(t, provincesTopology(t, 81)), opts)
	require.NoError(t, err)

	assert.Equal(t, "provinces", st.Object)
	assert.Equal(t, 81, st.Total)
	assert.Equal(t, 81, st.Indexed)
	require.Equal(t, 81, ix.Len())

	seen := map[string]bool{}
	for _, f := range ix.Features() {
		assert.False(t, seen[f.ID], "duplicate id %s", f.ID)
		seen[f.ID] = true
		require.NotEmpty(t, f.Geometry)
		assert.GreaterOrEqual(t, len(f.Geometry[0][0]), 4)
	}
	first, ok := ix.Get("il-1")
	require.True(t, ok)
	assert.Equal(t, "İl 1", first.Name)
}

func TestBuildTopologyDefaultsToFirstObject(t *testing.T) {
	ix, st, err := Build(decodeTopo(t, provincesTopology(t, 3)), DefaultOptions())
	require.NoError(t, err)
	// borders is a line object: nothing polygonal to index
	assert.Equal(t, "borders", st.Object)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 1, st.Dropped[DropNotPolygonal])
}

func TestBuildMissingObjectFallsBackToFirst(t *testing.T) {
	opts := DefaultOptions()
	opts.Object = "ilceler"
	_, st, err := Build(decodeTopo(t, provincesTopology(t, 2)), opts)
	require.NoError(t, err)
	assert.Equal(t, "borders", st.Object)
}

const mixedGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":34,"properties":{"name":"İstanbul"},"geometry":{"type":"Polygon","coordinates":[[[28,41],[29,41],[29,41.5],[28,41.5],[28,41]]]}},
 {"type":"Feature","properties":{"code":"TR-06","name":"Ankara"},"geometry":{"type":"MultiPolygon","coordinates":[[[[32,39],[33,39],[33,40],[32,40],[32,39]]]]}},
 {"type":"Feature","properties":{"name":"Şanlıurfa"},"geometry":{"type":"Polygon","coordinates":[[[38,37],[39,37],[39,37.5],[38,37.5]]]}},
 {"type":"Feature","properties":{"name":"Şanlıurfa"},"geometry":{"type":"Polygon","coordinates":[[[39,37],[40,37],[40,37.5],[39,37.5],[39,37]]]}},
 {"type":"Feature","properties":{"pop":1},"geometry":{"type":"Polygon","coordinates":[[[30,38],[31,38],[31,38.5],[30,38.5],[30,38]]]}},
 {"type":"Feature","properties":{"name":"Nowhere"},"geometry":null},
 {"type":"Feature","properties":{"name":"Line"},"geometry":{"type":"LineString","coordinates":[[30,38],[31,38]]}},
 {"type":"Feature","properties":{"name":"Flat"},"geometry":{"type":"Polygon","coordinates":[[[30,38],[31,38],[32,38],[30,38]]]}},
 {"type":"Feature","properties":{"name":"Sliver"},"geometry":{"type":"Polygon","coordinates":[[[30,38],[31,38],[30,38]]]}}
]}`

func TestBuildIDsAndDrops(t *testing.T) {
	ix, st, err := Build(decodeGeo(t, mixedGeoJSON), DefaultOptions())
	require.NoError(t, err)

	ids := make([]string, 0, ix.Len())
	for _, f := range ix.Features() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"34", "TR-06", "sanliurfa", "sanliurfa-2", "region-4"}, ids)
	assert.Equal(t, 1, st.FallbackIDs)
	assert.Equal(t, 1, st.Dropped[DropMissing])
	assert.Equal(t, 1, st.Dropped[DropNotPolygonal])
	assert.Equal(t, 2, st.Dropped[DropDegenerate])
	assert.Equal(t, 9, st.Total)
	assert.Equal(t, 5, st.Indexed)

	// the unclosed ring was closed
	urfa, ok := ix.Get("sanliurfa")
	require.True(t, ok)
	assert.True(t, urfa.Geometry[0][0].Closed())

	// no name: display name falls back to the id
	anon, _ := ix.Get("region-4")
	assert.Equal(t, "region-4", anon.Name)
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	_, _, err := Build(regionsrc.Decoded{}, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestBuildSkipsBrokenTopologyMember(t *testing.T) {
	doc := `{"type":"Topology","objects":{"provinces":{"type":"GeometryCollection","geometries":[
	  {"type":"Polygon","properties":{"name":"Good"},"arcs":[[0]]},
	  {"type":"Polygon","properties":{"name":"Broken"},"arcs":[[9]]}
	]}},"arcs":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	ix, st, err := Build(decodeTopo(t, []byte(doc)), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 1, st.Dropped[DropMissing])
}

func TestIndexQueries(t *testing.T) {
	ix, _, err := Build(decodeGeo(t, mixedGeoJSON), DefaultOptions())
	require.NoError(t, err)

	f, ok := ix.Locate(orb.Point{32.5, 39.5})
	require.True(t, ok)
	assert.Equal(t, "TR-06", f.ID)

	_, ok = ix.Locate(orb.Point{35, 39.5})
	assert.False(t, ok)
	_, ok = ix.Locate(orb.Point{10, 10})
	assert.False(t, ok)

	f, d, ok := ix.Nearest(orb.Point{33.2, 39.5}, 0)
	require.True(t, ok)
	assert.Equal(t, "TR-06", f.ID)
	assert.Less(t, d, 100.0)

	_, _, ok = ix.Nearest(orb.Point{45, 45}, 50)
	assert.False(t, ok)

	f, ok = ix.ByName("ISTANBUL")
	require.True(t, ok)
	assert.Equal(t, "34", f.ID)
	f, ok = ix.ByName("Şanlıurfa")
	require.True(t, ok)
	assert.Equal(t, "sanliurfa", f.ID)
	_, ok = ix.ByName("Atlantis")
	assert.False(t, ok)

	b := ix.Bound()
	assert.Equal(t, orb.Point{28, 37}, b.Min)
	assert.Equal(t, orb.Point{40, 41.5}, b.Max)

	fc := ix.FeatureCollection()
	require.Len(t, fc.Features, ix.Len())
	raw, err := fc.MarshalJSON()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"name":"İstanbul"`))
}

func TestNearestMatchesBruteForce(t *testing.T) {
	ix, _, err := Build(decodeTopo(t, provincesTopology(t, 81)), Options{Object: "provinces", NameKeys: []string{"name"}})
	require.NoError(t, err)
	probes := []orb.Point{{25, 35}, {30.3, 38.1}, {36, 41}, {31.7, 39.9}, {26.1, 40.4}}
	for _, p := range probes {
		got, gotD, ok := ix.Nearest(p, 0)
		require.True(t, ok)
		best, bestD := "", 1e18
		for _, f := range ix.Features() {
			if d := haversineKm(p, f.Centroid); d < bestD {
				best, bestD = f.ID, d
			}
		}
		assert.InDelta(t, bestD, gotD, 1e-9, "probe %v", p)
		if got.ID != best {
			// equidistant centroids may tie
			assert.InDelta(t, bestD, haversineKm(p, got.Centroid), 1e-9)
		}
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"İstanbul":          "istanbul",
		"Şanlıurfa":         "sanliurfa",
		"Kahramanmaraş":     "kahramanmaras",
		"Afyon Karahisar":   "afyon-karahisar",
		"  Muğla -- (TR) ":  "mugla-tr",
		"ÇANKIRI":           "cankiri",
		"":                  "",
		"—":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestCatalog(t *testing.T) {
	var c Catalog
	_, ok := c.Current()
	assert.False(t, ok)

	c.Publish(Snapshot{Status: regionsrc.StatusPending})
	_, ok = c.Current()
	assert.False(t, ok)

	ix, _, err := Build(decodeGeo(t, mixedGeoJSON), DefaultOptions())
	require.NoError(t, err)
	c.Publish(Snapshot{Status: regionsrc.StatusLoaded, Index: ix})
	c.Publish(Snapshot{Status: regionsrc.StatusUnavailable})

	s, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, regionsrc.StatusLoaded, s.Status)
	assert.Same(t, ix, s.Index)
	assert.False(t, s.LoadedAt.IsZero())
}

func TestCatalogConcurrentPublishKeepsLoaded(t *testing.T) {
	ix, _, err := Build(decodeGeo(t, mixedGeoJSON), DefaultOptions())
	require.NoError(t, err)
	for round := 0; round < 50; round++ {
		var c Catalog
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				c.Publish(Snapshot{Status: regionsrc.StatusUnavailable})
			}()
			go func() {
				defer wg.Done()
				c.Publish(Snapshot{Status: regionsrc.StatusLoaded, Index: ix})
			}()
		}
		wg.Wait()
		s, ok := c.Current()
		require.True(t, ok)
		require.Equal(t, regionsrc.StatusLoaded, s.Status, "round %d", round)
	}
}
