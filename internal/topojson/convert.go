package topojson

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// converter holds decoded absolute arc coordinates for one topology.
type converter struct {
	t    *Topology
	arcs [][]orb.Point
}

func newConverter(t *Topology) *converter {
	c := &converter{t: t, arcs: make([][]orb.Point, len(t.Arcs))}
	for i, arc := range t.Arcs {
		pts := make([]orb.Point, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if t.Transform != nil {
				// quantized arcs are delta encoded
				x += p[0]
				y += p[1]
				pts = append(pts, c.transform(x, y))
				continue
			}
			pts = append(pts, orb.Point{p[0], p[1]})
		}
		c.arcs[i] = pts
	}
	return c
}

func (c *converter) transform(x, y float64) orb.Point {
	tr := c.t.Transform
	if tr == nil {
		return orb.Point{x, y}
	}
	return orb.Point{x*tr.Scale[0] + tr.Translate[0], y*tr.Scale[1] + tr.Translate[1]}
}

func (c *converter) arc(i int) ([]orb.Point, error) {
	reverse := i < 0
	if reverse {
		i = ^i
	}
	if i >= len(c.arcs) {
		return nil, fmt.Errorf("%w: %d", ErrArcIndex, i)
	}
	src := c.arcs[i]
	out := make([]orb.Point, len(src))
	if !reverse {
		copy(out, src)
		return out, nil
	}
	for j, p := range src {
		out[len(src)-1-j] = p
	}
	return out, nil
}

// line stitches consecutive arcs; the shared end/start point is kept once.
func (c *converter) line(idx []int) ([]orb.Point, error) {
	var pts []orb.Point
	for _, i := range idx {
		a, err := c.arc(i)
		if err != nil {
			return nil, err
		}
		if len(pts) > 0 {
			pts = pts[:len(pts)-1]
		}
		pts = append(pts, a...)
	}
	return pts, nil
}

func (c *converter) ring(idx []int) (orb.Ring, error) {
	pts, err := c.line(idx)
	if err != nil {
		return nil, err
	}
	// a closed ring needs at least four positions
	for len(pts) > 0 && len(pts) < 4 {
		pts = append(pts, pts[0])
	}
	return orb.Ring(pts), nil
}

func (c *converter) polygon(rings [][]int) (orb.Polygon, error) {
	poly := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		ring, err := c.ring(r)
		if err != nil {
			return nil, err
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

func (c *converter) point(coords []float64) (orb.Point, error) {
	if len(coords) < 2 {
		return orb.Point{}, ErrBadGeometry
	}
	return c.transform(coords[0], coords[1]), nil
}

// geometry converts one TopoJSON geometry into an orb geometry. A null type
// yields nil without error.
func (c *converter) geometry(g *Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	switch g.Type {
	case "", "null":
		return nil, nil
	case "Point":
		var coords []float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("%w: point: %v", ErrBadGeometry, err)
		}
		return c.point(coords)
	case "MultiPoint":
		var coords [][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("%w: multipoint: %v", ErrBadGeometry, err)
		}
		mp := make(orb.MultiPoint, 0, len(coords))
		for _, p := range coords {
			pt, err := c.point(p)
			if err != nil {
				return nil, err
			}
			mp = append(mp, pt)
		}
		return mp, nil
	case "LineString":
		var idx []int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, fmt.Errorf("%w: linestring: %v", ErrBadGeometry, err)
		}
		pts, err := c.line(idx)
		if err != nil {
			return nil, err
		}
		return orb.LineString(pts), nil
	case "MultiLineString":
		var idx [][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, fmt.Errorf("%w: multilinestring: %v", ErrBadGeometry, err)
		}
		mls := make(orb.MultiLineString, 0, len(idx))
		for _, l := range idx {
			pts, err := c.line(l)
			if err != nil {
				return nil, err
			}
			mls = append(mls, orb.LineString(pts))
		}
		return mls, nil
	case "Polygon":
		var idx [][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, fmt.Errorf("%w: polygon: %v", ErrBadGeometry, err)
		}
		return c.polygon(idx)
	case "MultiPolygon":
		var idx [][][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, fmt.Errorf("%w: multipolygon: %v", ErrBadGeometry, err)
		}
		mp := make(orb.MultiPolygon, 0, len(idx))
		for _, p := range idx {
			poly, err := c.polygon(p)
			if err != nil {
				return nil, err
			}
			mp = append(mp, poly)
		}
		return mp, nil
	case "GeometryCollection":
		col := make(orb.Collection, 0, len(g.Geometries))
		for _, child := range g.Geometries {
			cg, err := c.geometry(child)
			if err != nil {
				return nil, err
			}
			if cg != nil {
				col = append(col, cg)
			}
		}
		return col, nil
	}
	return nil, fmt.Errorf("%w: unsupported type %q", ErrBadGeometry, g.Type)
}

func (c *converter) feature(g *Geometry) *geojson.Feature {
	geom, err := c.geometry(g)
	if err != nil {
		// a broken member becomes a feature without geometry; callers decide
		// whether to keep it
		geom = nil
	}
	f := geojson.NewFeature(geom)
	f.ID = g.ID
	for k, v := range g.Properties {
		f.Properties[k] = v
	}
	return f
}

// FeatureCollection converts the named object (the first one when name is
// empty) into a GeoJSON feature collection. A GeometryCollection object yields
// one feature per member; any other object yields a single feature. Members
// whose geometry cannot be converted are kept with a nil geometry.
func (t *Topology) FeatureCollection(name string) (*geojson.FeatureCollection, error) {
	obj, ok := t.Object(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownObj, name)
	}
	c := newConverter(t)
	fc := geojson.NewFeatureCollection()
	if obj.Geometry == nil {
		return fc, nil
	}
	if obj.Geometry.Type == "GeometryCollection" {
		for _, g := range obj.Geometry.Geometries {
			if g == nil {
				continue
			}
			fc.Append(c.feature(g))
		}
		return fc, nil
	}
	fc.Append(c.feature(obj.Geometry))
	return fc, nil
}
