package viewport

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// BaseLayer describes a slippy-map tile source. Template placeholders are
// {s} subdomain, {z} {x} {y} tile address and {r} the retina suffix.
type BaseLayer struct {
	Template    string `yaml:"template" json:"template"`
	Attribution string `yaml:"attribution" json:"attribution"`
	Subdomains  string `yaml:"subdomains" json:"subdomains"`
}

// TileRef is one tile needed to cover the view, positioned in view pixels.
type TileRef struct {
	X    uint32  `json:"x"`
	Y    uint32  `json:"y"`
	Z    int     `json:"z"`
	URL  string  `json:"url"`
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// TileURL expands the template for t. The subdomain is picked by (x+y) modulo
// the number of subdomains so neighbouring tiles spread across hosts.
func (b BaseLayer) TileURL(t maptile.Tile, retina bool) string {
	sub := ""
	if n := len(b.Subdomains); n > 0 {
		sub = string(b.Subdomains[int(t.X+t.Y)%n])
	}
	r := ""
	if retina {
		r = "@2x"
	}
	return strings.NewReplacer(
		"{s}", sub,
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
		"{r}", r,
	).Replace(b.Template)
}

// VisibleTiles lists the tiles of b covering the current view, row by row.
func (v *Viewport) VisibleTiles(b BaseLayer, retina bool) []TileRef {
	st := v.State()
	z := maptile.Zoom(v.zoom)
	tl := maptile.At(st.Bounds.LeftTop(), z)
	br := maptile.At(st.Bounds.RightBottom(), z)
	max := uint32(1)<<uint32(z) - 1
	if br.X > max {
		br.X = max
	}
	if br.Y > max {
		br.Y = max
	}
	origin := v.worldAt(orb.Point{0, 0})
	var out []TileRef
	for y := tl.Y; y <= br.Y; y++ {
		for x := tl.X; x <= br.X; x++ {
			t := maptile.New(x, y, z)
			out = append(out, TileRef{
				X:    x,
				Y:    y,
				Z:    v.zoom,
				URL:  b.TileURL(t, retina),
				Left: round(float64(x)*TileSize - origin[0]),
				Top:  round(float64(y)*TileSize - origin[1]),
			})
		}
	}
	return out
}
