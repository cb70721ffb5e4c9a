// Package regionindex normalizes decoded boundary data into a keyed, immutable
// set of region features and answers lookups over it.
package regionindex

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RegionFeature is one administrative region of a load. It must not be
// modified after indexing.
type RegionFeature struct {
	ID         string
	Name       string
	Geometry   orb.MultiPolygon
	Bound      orb.Bound
	Centroid   orb.Point
	Properties map[string]any
}

// GeoJSON renders f with only the id and name properties.
func (f RegionFeature) GeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry)
	gf.ID = f.ID
	gf.Properties["id"] = f.ID
	gf.Properties["name"] = f.Name
	return gf
}
