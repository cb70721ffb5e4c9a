package regionindex

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Index is the immutable result of one Build. It is safe for concurrent
// reads.
type Index struct {
	features []RegionFeature
	byID     map[string]int
	bySlug   map[string]int
	bound    orb.Bound
	kd       *kdNode
}

func newIndex(features []RegionFeature) *Index {
	ix := &Index{
		features: features,
		byID:     make(map[string]int, len(features)),
		bySlug:   make(map[string]int, len(features)),
	}
	items := make([]kdItem, 0, len(features))
	for i, f := range features {
		ix.byID[f.ID] = i
		if s := Slug(f.Name); s != "" {
			if _, dup := ix.bySlug[s]; !dup {
				ix.bySlug[s] = i
			}
		}
		if i == 0 {
			ix.bound = f.Bound
		} else {
			ix.bound = ix.bound.Union(f.Bound)
		}
		items = append(items, kdItem{pos: i, at: f.Centroid})
	}
	ix.kd = buildKD(items, 0)
	return ix
}

// Features returns the features in load order.
func (ix *Index) Features() []RegionFeature {
	return append([]RegionFeature(nil), ix.features...)
}

// Len is the number of indexed features.
func (ix *Index) Len() int { return len(ix.features) }

// Bound covers every feature; it is the zero bound for an empty index.
func (ix *Index) Bound() orb.Bound { return ix.bound }

// Get looks a feature up by id.
func (ix *Index) Get(id string) (RegionFeature, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return RegionFeature{}, false
	}
	return ix.features[i], true
}

// ByName matches a display name after slugging both sides, so "ISTANBUL" and
// "İstanbul" find the same region. Ids are tried as a fallback.
func (ix *Index) ByName(name string) (RegionFeature, bool) {
	s := Slug(name)
	if i, ok := ix.bySlug[s]; ok {
		return ix.features[i], true
	}
	return ix.Get(s)
}

// Locate returns the region containing p (lon/lat). Where regions overlap the
// one drawn last wins, as it does on screen.
func (ix *Index) Locate(p orb.Point) (RegionFeature, bool) {
	if len(ix.features) == 0 || !ix.bound.Contains(p) {
		return RegionFeature{}, false
	}
	for i := len(ix.features) - 1; i >= 0; i-- {
		f := ix.features[i]
		if f.Bound.Contains(p) && planar.MultiPolygonContains(f.Geometry, p) {
			return f, true
		}
	}
	return RegionFeature{}, false
}

// Nearest returns the region whose centroid is closest to p and the distance
// in km. maxKm <= 0 means unlimited.
func (ix *Index) Nearest(p orb.Point, maxKm float64) (RegionFeature, float64, bool) {
	if ix.kd == nil {
		return RegionFeature{}, 0, false
	}
	pos, d := ix.kd.nearest(p)
	if pos < 0 || (maxKm > 0 && d > maxKm) {
		return RegionFeature{}, d, false
	}
	return ix.features[pos], d, true
}

// FeatureCollection renders the index as GeoJSON with id and name properties.
func (ix *Index) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(ix.features))
	for _, f := range ix.features {
		fc.Append(f.GeoJSON())
	}
	return fc
}
