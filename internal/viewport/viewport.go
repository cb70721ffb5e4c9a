// Package viewport owns the pan/zoom state of one map view, the base tile
// layer picked by theme and the region overlay layer drawn above it.
//
// The center is kept in world pixel coordinates of the current integer zoom.
// Every operation clamps the view so its visible area stays inside
// Config.MaxBounds; when the view is wider or taller than the box it is
// centred on the box along that axis. While a drag is in progress the bound is
// softened by the viscosity (1 is a hard stop) and DragEnd snaps back.
package viewport

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// Config holds the hard limits of a viewport.
type Config struct {
	MaxBounds orb.Bound
	MinZoom   int
	MaxZoom   int
	Viscosity float64
}

// Validate reports unusable limits.
func (c Config) Validate() error {
	if c.MinZoom < 0 || c.MaxZoom > 24 || c.MinZoom > c.MaxZoom {
		return errors.New("viewport: zoom range must satisfy 0 <= min <= max <= 24")
	}
	if c.MaxBounds.IsEmpty() || c.MaxBounds.Min[0] >= c.MaxBounds.Max[0] || c.MaxBounds.Min[1] >= c.MaxBounds.Max[1] {
		return errors.New("viewport: max bounds must have a positive area")
	}
	if c.Viscosity < 0 || c.Viscosity > 1 {
		return errors.New("viewport: viscosity must be within [0, 1]")
	}
	return nil
}

// Size is the pixel size of the view.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// State is a snapshot of the view. Center and Bounds are lon/lat.
type State struct {
	Center orb.Point `json:"center"`
	Zoom   int       `json:"zoom"`
	Size   Size      `json:"size"`
	Bounds orb.Bound `json:"bounds"`
}

// Viewport is not safe for concurrent use; one view loop owns it.
type Viewport struct {
	cfg      Config
	center   orb.Point
	zoom     int
	size     Size
	dragging bool
}

// New places the view at center/zoom, already clamped.
func New(cfg Config, center orb.Point, zoom int, size Size) *Viewport {
	v := &Viewport{cfg: cfg, size: sanitizeSize(size)}
	v.zoom = v.clampZoom(zoom)
	v.center = v.clamp(Project(center, v.zoom), 1)
	return v
}

// MaxSide caps either pixel dimension of a view.
const MaxSide = 4096

func sanitizeSize(s Size) Size {
	s.W = max(1, min(s.W, MaxSide))
	s.H = max(1, min(s.H, MaxSide))
	return s
}

// Config returns the limits the view was built with.
func (v *Viewport) Config() Config { return v.cfg }

func (v *Viewport) clampZoom(z int) int {
	if z < v.cfg.MinZoom {
		return v.cfg.MinZoom
	}
	if z > v.cfg.MaxZoom {
		return v.cfg.MaxZoom
	}
	return z
}

// limits returns the allowed center range along each axis at the current
// zoom. lo == hi when the view does not fit inside the box.
func (v *Viewport) limits() (lo, hi orb.Point) {
	tl := Project(v.cfg.MaxBounds.LeftTop(), v.zoom)
	br := Project(v.cfg.MaxBounds.RightBottom(), v.zoom)
	half := [2]float64{float64(v.size.W) / 2, float64(v.size.H) / 2}
	box := [2][2]float64{{tl[0], br[0]}, {tl[1], br[1]}}
	for axis := 0; axis < 2; axis++ {
		min, max := box[axis][0], box[axis][1]
		if max-min <= 2*half[axis] {
			mid := (min + max) / 2
			lo[axis], hi[axis] = mid, mid
			continue
		}
		lo[axis], hi[axis] = min+half[axis], max-half[axis]
	}
	return lo, hi
}

// clamp pulls p into the allowed center range. viscosity 1 is a hard clamp,
// lower values let part of the excess through.
func (v *Viewport) clamp(p orb.Point, viscosity float64) orb.Point {
	lo, hi := v.limits()
	for axis := 0; axis < 2; axis++ {
		switch {
		case p[axis] < lo[axis]:
			p[axis] = p[axis] - (p[axis]-lo[axis])*viscosity
		case p[axis] > hi[axis]:
			p[axis] = p[axis] - (p[axis]-hi[axis])*viscosity
		}
	}
	return p
}

// State returns the current snapshot.
func (v *Viewport) State() State {
	hw, hh := float64(v.size.W)/2, float64(v.size.H)/2
	sw := Unproject(orb.Point{v.center[0] - hw, v.center[1] + hh}, v.zoom)
	ne := Unproject(orb.Point{v.center[0] + hw, v.center[1] - hh}, v.zoom)
	return State{
		Center: Unproject(v.center, v.zoom),
		Zoom:   v.zoom,
		Size:   v.size,
		Bounds: orb.Bound{Min: sw, Max: ne},
	}
}

// Zoom returns the current zoom.
func (v *Viewport) Zoom() int { return v.zoom }

// Size returns the current pixel size.
func (v *Viewport) Size() Size { return v.size }

// Dragging reports whether a drag is in progress.
func (v *Viewport) Dragging() bool { return v.dragging }

// ToView maps lon/lat onto view pixel coordinates.
func (v *Viewport) ToView(ll orb.Point) orb.Point {
	p := Project(ll, v.zoom)
	return orb.Point{
		p[0] - v.center[0] + float64(v.size.W)/2,
		p[1] - v.center[1] + float64(v.size.H)/2,
	}
}

// FromView maps view pixel coordinates onto lon/lat.
func (v *Viewport) FromView(px orb.Point) orb.Point {
	return Unproject(v.worldAt(px), v.zoom)
}

func (v *Viewport) worldAt(px orb.Point) orb.Point {
	return orb.Point{
		v.center[0] + px[0] - float64(v.size.W)/2,
		v.center[1] + px[1] - float64(v.size.H)/2,
	}
}

// PanBy moves the center by (dx, dy) pixels.
func (v *Viewport) PanBy(dx, dy float64) State {
	v.center = v.clamp(orb.Point{v.center[0] + dx, v.center[1] + dy}, 1)
	return v.State()
}

// PanTo centres the view on ll.
func (v *Viewport) PanTo(ll orb.Point) State {
	v.center = v.clamp(Project(ll, v.zoom), 1)
	return v.State()
}

// SetZoom changes the zoom keeping the geographic center.
func (v *Viewport) SetZoom(z int) State {
	ll := Unproject(v.center, v.zoom)
	v.zoom = v.clampZoom(z)
	v.center = v.clamp(Project(ll, v.zoom), 1)
	return v.State()
}

// ZoomAround changes the zoom by delta keeping the point under anchor (view
// pixels) in place, as a wheel zoom does.
func (v *Viewport) ZoomAround(anchor orb.Point, delta int) State {
	ll := v.FromView(anchor)
	z := v.clampZoom(v.zoom + delta)
	if z == v.zoom {
		return v.State()
	}
	v.zoom = z
	p := Project(ll, z)
	v.center = v.clamp(orb.Point{
		p[0] - anchor[0] + float64(v.size.W)/2,
		p[1] - anchor[1] + float64(v.size.H)/2,
	}, 1)
	return v.State()
}

// FitBounds picks the largest zoom at which b fits the view and centres on it.
func (v *Viewport) FitBounds(b orb.Bound) State {
	z := v.cfg.MinZoom
	for cand := v.cfg.MaxZoom; cand >= v.cfg.MinZoom; cand-- {
		tl, br := Project(b.LeftTop(), cand), Project(b.RightBottom(), cand)
		if br[0]-tl[0] <= float64(v.size.W) && br[1]-tl[1] <= float64(v.size.H) {
			z = cand
			break
		}
	}
	v.zoom = z
	v.center = v.clamp(Project(b.Center(), z), 1)
	return v.State()
}

// Resize changes the pixel size of the view.
func (v *Viewport) Resize(w, h int) State {
	v.size = sanitizeSize(Size{W: w, H: h})
	v.center = v.clamp(v.center, 1)
	return v.State()
}

// Drag follows a pointer moving by (dx, dy) pixels: the map moves with the
// pointer, so the center moves the other way. Past the bound the movement is
// resisted by the configured viscosity.
func (v *Viewport) Drag(dx, dy float64) State {
	v.dragging = true
	v.center = v.clamp(orb.Point{v.center[0] - dx, v.center[1] - dy}, v.cfg.Viscosity)
	return v.State()
}

// DragEnd finishes a drag and snaps the view back inside the bound.
func (v *Viewport) DragEnd() State {
	v.dragging = false
	v.center = v.clamp(v.center, 1)
	return v.State()
}

// round keeps emitted pixel values short.
func round(f float64) float64 {
	return math.Round(f*10) / 10
}
