package viewport

import (
	"math"
	"strconv"

	"regionmap/internal/regionindex"

	"github.com/paulmach/orb"
)

// Style is the paint of one region shape. Scale 0 and 1 both mean no scale
// transform.
type Style struct {
	Color       string  `yaml:"color" json:"color"`
	Weight      float64 `yaml:"weight" json:"weight"`
	FillColor   string  `yaml:"fill_color" json:"fillColor"`
	FillOpacity float64 `yaml:"fill_opacity" json:"fillOpacity"`
	Scale       float64 `yaml:"scale" json:"scale,omitempty"`
}

// EffectiveScale returns the scale factor to draw with.
func (s Style) EffectiveScale() float64 {
	if s.Scale <= 0 {
		return 1
	}
	return s.Scale
}

// Shape is one region as mounted on the overlay.
type Shape struct {
	ID    string
	Name  string
	Geom  orb.MultiPolygon
	Bound orb.Bound
	Style Style
}

// Layer is the region overlay: shapes keyed by id, their paint order and
// current paint. It is not safe for concurrent use.
type Layer struct {
	shapes   map[string]*Shape
	order    []string
	revision uint64
}

func NewLayer() *Layer {
	return &Layer{shapes: make(map[string]*Shape)}
}

// Mount replaces every shape with features, in feature order, unpainted.
func (l *Layer) Mount(features []regionindex.RegionFeature) {
	l.shapes = make(map[string]*Shape, len(features))
	l.order = l.order[:0]
	for _, f := range features {
		l.shapes[f.ID] = &Shape{ID: f.ID, Name: f.Name, Geom: f.Geometry, Bound: f.Bound}
		l.order = append(l.order, f.ID)
	}
	l.revision++
}

// Clear drops every shape.
func (l *Layer) Clear() {
	if len(l.shapes) == 0 {
		return
	}
	l.shapes = make(map[string]*Shape)
	l.order = nil
	l.revision++
}

// Invalidate marks the layer as needing a full redraw, e.g. after a theme
// change.
func (l *Layer) Invalidate() { l.revision++ }

// Revision changes whenever the shape set is replaced or invalidated.
func (l *Layer) Revision() uint64 { return l.revision }

// Len is the number of mounted shapes.
func (l *Layer) Len() int { return len(l.order) }

// Shape returns the mounted shape for id.
func (l *Layer) Shape(id string) (*Shape, bool) {
	s, ok := l.shapes[id]
	return s, ok
}

// Order returns the paint order, bottom first.
func (l *Layer) Order() []string {
	return append([]string(nil), l.order...)
}

// Paint sets the style of id and reports whether anything changed.
func (l *Layer) Paint(id string, st Style) bool {
	s, ok := l.shapes[id]
	if !ok || s.Style == st {
		return false
	}
	s.Style = st
	return true
}

// Style returns the current paint of id.
func (l *Layer) Style(id string) (Style, bool) {
	s, ok := l.shapes[id]
	if !ok {
		return Style{}, false
	}
	return s.Style, true
}

// BringToFront moves id to the top of the paint order and reports whether it
// moved.
func (l *Layer) BringToFront(id string) bool {
	if _, ok := l.shapes[id]; !ok {
		return false
	}
	last := len(l.order) - 1
	for i, o := range l.order {
		if o != id {
			continue
		}
		if i == last {
			return false
		}
		copy(l.order[i:], l.order[i+1:])
		l.order[last] = id
		return true
	}
	return false
}

// Renderable reports whether id has at least one closed ring with finite
// coordinates, i.e. whether a path can be drawn for it.
func (l *Layer) Renderable(id string) bool {
	s, ok := l.shapes[id]
	if !ok {
		return false
	}
	for _, poly := range s.Geom {
		if len(poly) > 0 && ringDrawable(poly[0]) {
			return true
		}
	}
	return false
}

func ringDrawable(r orb.Ring) bool {
	if len(r) < 4 {
		return false
	}
	for _, p := range r {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return false
		}
	}
	return true
}

// Path projects the shape onto the view as SVG path data. Rings that cannot
// be drawn are skipped; the result is empty when nothing can be drawn.
func (l *Layer) Path(id string, v *Viewport) string {
	s, ok := l.shapes[id]
	if !ok {
		return ""
	}
	buf := make([]byte, 0, 256)
	for _, poly := range s.Geom {
		for _, ring := range poly {
			if !ringDrawable(ring) {
				continue
			}
			for i, p := range ring {
				px := v.ToView(p)
				if i == 0 {
					buf = append(buf, 'M')
				} else {
					buf = append(buf, 'L')
				}
				buf = strconv.AppendFloat(buf, round(px[0]), 'f', -1, 64)
				buf = append(buf, ' ')
				buf = strconv.AppendFloat(buf, round(px[1]), 'f', -1, 64)
			}
			buf = append(buf, 'Z')
		}
	}
	return string(buf)
}

// Anchor is the view pixel a scale transform of id is centred on.
func (l *Layer) Anchor(id string, v *Viewport) orb.Point {
	s, ok := l.shapes[id]
	if !ok {
		return orb.Point{}
	}
	return v.ToView(s.Bound.Center())
}
