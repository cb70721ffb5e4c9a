package regionindex

import (
	"math"

	"github.com/paulmach/orb"
)

// kdNode splits centroids alternately on longitude (axis 0) and latitude.
type kdNode struct {
	pos  int
	at   orb.Point
	axis int
	l, r *kdNode
}

type kdItem struct {
	pos int
	at  orb.Point
}

func buildKD(items []kdItem, depth int) *kdNode {
	if len(items) == 0 {
		return nil
	}
	axis := depth % 2
	mid := len(items) / 2
	selectNth(items, mid, axis)
	n := &kdNode{pos: items[mid].pos, at: items[mid].at, axis: axis}
	n.l = buildKD(items[:mid], depth+1)
	n.r = buildKD(items[mid+1:], depth+1)
	return n
}

// selectNth partially orders items so items[n] is the n-th along axis.
func selectNth(a []kdItem, n, axis int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, axis)
		switch {
		case p == n:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition(a []kdItem, lo, hi, pivot, axis int) int {
	pv := a[pivot].at[axis]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if a[j].at[axis] < pv {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

// nearest returns the position of the closest centroid and its distance in km.
func (n *kdNode) nearest(p orb.Point) (int, float64) {
	best, bestD := -1, math.MaxFloat64
	var walk func(*kdNode)
	walk = func(k *kdNode) {
		if k == nil {
			return
		}
		if d := haversineKm(p, k.at); d < bestD {
			best, bestD = k.pos, d
		}
		diff := p[k.axis] - k.at[k.axis]
		first, second := k.l, k.r
		if diff > 0 {
			first, second = k.r, k.l
		}
		walk(first)
		if planeDistKm(p, k) < bestD {
			walk(second)
		}
	}
	walk(n)
	return best, bestD
}

// planeDistKm is a lower bound of the distance from p to any point on the
// other side of k's splitting line.
func planeDistKm(p orb.Point, k *kdNode) float64 {
	const r = 6371.0
	rad := math.Pi / 180
	if k.axis == 1 {
		return math.Abs(p[1]-k.at[1]) * rad * r
	}
	dLon := math.Abs(p[0]-k.at[0]) * rad
	if dLon >= math.Pi/2 {
		return 0
	}
	return r * math.Asin(math.Sin(dLon)*math.Cos(p[1]*rad))
}

func haversineKm(a, b orb.Point) float64 {
	const r = 6371.0
	rad := math.Pi / 180
	dLat := (b[1] - a[1]) * rad
	dLon := (b[0] - a[0]) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a[1]*rad)*math.Cos(b[1]*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * r * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
