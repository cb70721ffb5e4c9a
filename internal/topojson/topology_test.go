package topojson

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// two unit squares sharing the x=2 edge, quantized with scale 0.5
const twoSquares = `{
  "type": "Topology",
  "transform": {"scale": [0.5, 0.5], "translate": [10, 20]},
  "objects": {
    "zones": {"type": "GeometryCollection", "geometries": [
      {"type": "Polygon", "id": "L", "properties": {"name": "Left"}, "arcs": [[0, 1]]},
      {"type": "Polygon", "id": "R", "properties": {"name": "Right"}, "arcs": [[2, -1]]},
      {"type": null, "properties": {"name": "Nowhere"}}
    ]},
    "alpha": {"type": "Point", "coordinates": [4, 4]}
  },
  "arcs": [
    [[2, 0], [0, 2]],
    [[2, 2], [-2, 0], [0, -2], [2, 0]],
    [[2, 0], [2, 0], [0, 2], [-2, 0]]
  ]
}`

func TestDecodeKeepsObjectOrder(t *testing.T) {
	topo, err := Decode([]byte(twoSquares))
	require.NoError(t, err)
	assert.Equal(t, []string{"zones", "alpha"}, topo.ObjectNames())

	first, ok := topo.Object("")
	require.True(t, ok)
	assert.Equal(t, "zones", first.Name)

	_, ok = topo.Object("missing")
	assert.False(t, ok)
}

func TestFeatureCollectionStitchesArcs(t *testing.T) {
	topo, err := Decode([]byte(twoSquares))
	require.NoError(t, err)

	fc, err := topo.FeatureCollection("zones")
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	left, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, orb.Ring{{11, 20}, {11, 21}, {10, 21}, {10, 20}, {11, 20}}, left[0])
	assert.Equal(t, "L", fc.Features[0].ID)
	assert.Equal(t, "Left", fc.Features[0].Properties["name"])

	right, ok := fc.Features[1].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, orb.Ring{{11, 20}, {12, 20}, {12, 21}, {11, 21}, {11, 20}}, right[0])

	assert.Nil(t, fc.Features[2].Geometry)
}

func TestFeatureCollectionSingleGeometryObject(t *testing.T) {
	topo, err := Decode([]byte(twoSquares))
	require.NoError(t, err)

	fc, err := topo.FeatureCollection("alpha")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, orb.Point{12, 22}, fc.Features[0].Geometry)
}

func TestUnquantizedArcsAreAbsolute(t *testing.T) {
	doc := `{"type":"Topology","objects":{"one":{"type":"Polygon","arcs":[[0]]}},
	  "arcs":[[[0,0],[1,0],[1,1],[0,0]]]}`
	topo, err := Decode([]byte(doc))
	require.NoError(t, err)
	fc, err := topo.FeatureCollection("")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, fc.Features[0].Geometry)
}

func TestBrokenArcReferenceYieldsNilGeometry(t *testing.T) {
	doc := `{"type":"Topology","objects":{"one":{"type":"GeometryCollection","geometries":[
	  {"type":"Polygon","arcs":[[7]]},
	  {"type":"Polygon","arcs":[[0]]}
	]}},"arcs":[[[0,0],[1,0],[1,1],[0,0]]]}`
	topo, err := Decode([]byte(doc))
	require.NoError(t, err)
	fc, err := topo.FeatureCollection("one")
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Nil(t, fc.Features[0].Geometry)
	assert.NotNil(t, fc.Features[1].Geometry)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{"type":`,
		"wrong type":     `{"type":"FeatureCollection","features":[]}`,
		"no objects":     `{"type":"Topology","objects":{},"arcs":[]}`,
		"objects array":  `{"type":"Topology","objects":[],"arcs":[]}`,
		"zero transform": `{"type":"Topology","transform":{"scale":[0,0],"translate":[0,0]},"objects":{"a":{"type":null}},"arcs":[]}`,
	}
	for name, doc := range cases {
		_, err := Decode([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestUnknownObject(t *testing.T) {
	topo, err := Decode([]byte(twoSquares))
	require.NoError(t, err)
	_, err = topo.FeatureCollection("provinces")
	assert.ErrorIs(t, err, ErrUnknownObj)
}
