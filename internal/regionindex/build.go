package regionindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"regionmap/internal/logger"
	"regionmap/internal/metrics"
	"regionmap/internal/regionsrc"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Drop reasons reported in Stats.
const (
	DropMissing      = "missing_geometry"
	DropNotPolygonal = "not_polygonal"
	DropDegenerate   = "degenerate"
)

// ErrEmptyInput is returned when the decoded value carries no data.
var ErrEmptyInput = errors.New("regionindex: nothing to index")

// Options select how features are keyed.
type Options struct {
	// Object is the topology object to convert; empty, or a name the topology
	// lacks, selects the first object.
	Object string
	// IDKeys are properties holding an explicit identifier, in priority order.
	// The feature's own id member is consulted first.
	IDKeys []string
	// NameKeys are properties holding the display name, in priority order.
	NameKeys []string
}

// DefaultOptions covers the common GeoJSON conventions.
func DefaultOptions() Options {
	return Options{IDKeys: []string{"id", "code"}, NameKeys: []string{"name", "NAME", "Name"}}
}

// Stats describe one Build.
type Stats struct {
	Total       int            `json:"total"`
	Indexed     int            `json:"indexed"`
	Dropped     map[string]int `json:"dropped,omitempty"`
	FallbackIDs int            `json:"fallback_ids"`
	Object      string         `json:"object,omitempty"`
}

// Build normalizes d into an index. Features whose geometry is missing or
// cannot be drawn are skipped and counted; they never fail the build.
//
// Ids come from the feature id or an IDKeys property, then from the slugged
// name, then from the position in the input ("region-<i>"). Positional ids
// are only stable for one load. Colliding ids get "-2", "-3"... suffixes in
// input order.
func Build(d regionsrc.Decoded, opts Options) (*Index, Stats, error) {
	fc, object, err := collection(d, opts.Object)
	if err != nil {
		return nil, Stats{}, err
	}
	st := Stats{Total: len(fc.Features), Dropped: map[string]int{}, Object: object}
	used := make(map[string]bool, len(fc.Features))
	features := make([]RegionFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			st.Dropped[DropMissing]++
			continue
		}
		mp, reason := polygons(f.Geometry)
		if reason != "" {
			st.Dropped[reason]++
			metrics.FeaturesDroppedTotal.WithLabelValues(reason).Inc()
			continue
		}
		name := firstProp(f.Properties, opts.NameKeys)
		id := explicitID(f, opts.IDKeys)
		if id == "" {
			id = Slug(name)
		}
		if id == "" {
			id = "region-" + strconv.Itoa(i)
			st.FallbackIDs++
		}
		id = unique(used, id)
		if name == "" {
			name = id
		}
		c, _ := planar.CentroidArea(mp)
		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
		features = append(features, RegionFeature{
			ID:         id,
			Name:       name,
			Geometry:   mp,
			Bound:      mp.Bound(),
			Centroid:   c,
			Properties: props,
		})
	}
	st.Indexed = len(features)
	logger.L().Info("region_index_built",
		"format", d.Format,
		"object", object,
		"total", st.Total,
		"indexed", st.Indexed,
		"fallback_ids", st.FallbackIDs,
	)
	return newIndex(features), st, nil
}

func collection(d regionsrc.Decoded, object string) (*geojson.FeatureCollection, string, error) {
	switch {
	case d.Collection != nil:
		return d.Collection, "", nil
	case d.Topology != nil:
		obj, ok := d.Topology.Object(object)
		if !ok {
			if obj, ok = d.Topology.Object(""); !ok {
				return nil, "", ErrEmptyInput
			}
			logger.L().Warn("topology_object_missing", "want", object, "using", obj.Name, "available", d.Topology.ObjectNames())
		}
		fc, err := d.Topology.FeatureCollection(obj.Name)
		if err != nil {
			return nil, "", fmt.Errorf("regionindex: %w", err)
		}
		return fc, obj.Name, nil
	}
	return nil, "", ErrEmptyInput
}

func unique(used map[string]bool, id string) string {
	cand := id
	for n := 2; used[cand]; n++ {
		cand = id + "-" + strconv.Itoa(n)
	}
	used[cand] = true
	return cand
}

func explicitID(f *geojson.Feature, keys []string) string {
	if s := scalarString(f.ID); s != "" {
		return s
	}
	return firstProp(f.Properties, keys)
}

func firstProp(props geojson.Properties, keys []string) string {
	for _, k := range keys {
		if s := scalarString(props[k]); s != "" {
			return s
		}
	}
	return ""
}

// scalarString renders strings and numbers; anything else is "".
func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	}
	return ""
}

// polygons extracts the drawable polygonal part of g. The reason is empty
// when something usable is left.
func polygons(g orb.Geometry) (orb.MultiPolygon, string) {
	var raw orb.MultiPolygon
	switch g := g.(type) {
	case nil:
		return nil, DropMissing
	case orb.Polygon:
		raw = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		raw = g
	case orb.Collection:
		for _, child := range g {
			if mp, reason := polygons(child); reason == "" {
				raw = append(raw, mp...)
			}
		}
		if len(raw) == 0 {
			return nil, DropNotPolygonal
		}
	case orb.Bound:
		raw = orb.MultiPolygon{g.ToPolygon()}
	default:
		return nil, DropNotPolygonal
	}
	out := make(orb.MultiPolygon, 0, len(raw))
	for _, poly := range raw {
		if len(poly) == 0 {
			continue
		}
		outer, ok := cleanRing(poly[0])
		if !ok {
			continue
		}
		p := orb.Polygon{outer}
		for _, hole := range poly[1:] {
			if h, ok := cleanRing(hole); ok {
				p = append(p, h)
			}
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, DropDegenerate
	}
	return out, ""
}

// cleanRing copies r, closing it when needed, and rejects rings with
// non-finite coordinates, fewer than four positions or no area.
func cleanRing(r orb.Ring) (orb.Ring, bool) {
	out := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return nil, false
		}
		out = append(out, p)
	}
	if len(out) > 0 && !out.Closed() {
		out = append(out, out[0])
	}
	if len(out) < 4 || planar.Area(out) == 0 {
		return nil, false
	}
	return out, true
}
