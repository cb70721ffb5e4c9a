package viewport

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// TileSize is the edge of one slippy-map tile in pixels.
const TileSize = 256

const halfWorld = math.Pi * orb.EarthRadius

// WorldSize is the edge of the whole world in pixels at zoom z.
func WorldSize(z int) float64 {
	return TileSize * math.Exp2(float64(z))
}

// Project maps a lon/lat point onto world pixel coordinates at zoom z; the
// origin is the top-left corner of the world, y grows southwards.
func Project(ll orb.Point, z int) orb.Point {
	m := project.WGS84.ToMercator(ll)
	ws := WorldSize(z)
	return orb.Point{
		(m[0] + halfWorld) / (2 * halfWorld) * ws,
		(halfWorld - m[1]) / (2 * halfWorld) * ws,
	}
}

// Unproject is the inverse of Project.
func Unproject(px orb.Point, z int) orb.Point {
	ws := WorldSize(z)
	m := orb.Point{
		px[0]/ws*2*halfWorld - halfWorld,
		halfWorld - px[1]/ws*2*halfWorld,
	}
	return project.Mercator.ToWGS84(m)
}
