// Package locate places a visitor on the region map from their IP address.
//
// The address is resolved through an IP database chain (MaxMind City, then
// ip2region). A coordinate is matched against the loaded regions by
// containment, then by nearest centroid within a radius; a bare province or
// city name is matched by name. Coordinate matches are cached per geohash cell.
package locate

import (
	"net"
	"strconv"
	"time"

	"regionmap/internal/metrics"
	"regionmap/internal/regionindex"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/paulmach/orb"
)

// Match methods.
const (
	MethodContains = "contains"
	MethodNearest  = "nearest"
	MethodName     = "name"
)

// geohash cell size used as cache key, ~1.2 km x 0.6 km
const cellPrecision = 6

// Result is the answer for one address.
type Result struct {
	Found      bool      `json:"found"`
	RegionID   string    `json:"id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Method     string    `json:"method,omitempty"`
	DistanceKm float64   `json:"distance_km,omitempty"`
	Point      orb.Point `json:"point,omitempty"`
	Source     string    `json:"source,omitempty"`
}

// Snapshots supplies the currently loaded regions.
type Snapshots interface {
	Current() (regionindex.Snapshot, bool)
}

// Locator is safe for concurrent use.
type Locator struct {
	resolver Resolver
	regions  Snapshots
	maxKm    float64
	cache    *lru
}

func New(resolver Resolver, regions Snapshots, maxKm float64, ttl time.Duration) *Locator {
	return &Locator{resolver: resolver, regions: regions, maxKm: maxKm, cache: newLRU(4096, ttl)}
}

// Locate resolves addr to a region. Unknown addresses, missing databases and
// a map without regions all answer Found=false.
func (l *Locator) Locate(addr string) Result {
	res := l.locate(addr)
	label := "miss"
	if res.Found {
		label = res.Method
	}
	metrics.LocateTotal.WithLabelValues(label).Inc()
	return res
}

func (l *Locator) locate(addr string) Result {
	ip := net.ParseIP(addr)
	if ip == nil || l.resolver == nil {
		return Result{}
	}
	hit, ok := l.resolver.Resolve(ip)
	if !ok {
		return Result{}
	}
	snap, ok := l.regions.Current()
	if !ok || snap.Index == nil || snap.Index.Len() == 0 {
		return Result{}
	}
	if hit.HasPoint {
		return l.byPoint(snap, hit)
	}
	for _, name := range []string{hit.Province, hit.City} {
		if name == "" {
			continue
		}
		if f, ok := snap.Index.ByName(name); ok {
			return Result{Found: true, RegionID: f.ID, Name: f.Name, Method: MethodName, Point: f.Centroid, Source: hit.Source}
		}
	}
	return Result{}
}

func (l *Locator) byPoint(snap regionindex.Snapshot, hit Hit) Result {
	cell := geohash.Encode(hit.Point[1], hit.Point[0])
	if len(cell) > cellPrecision {
		cell = cell[:cellPrecision]
	}
	// a new load invalidates earlier answers
	key := strconv.FormatInt(snap.LoadedAt.UnixNano(), 36) + ":" + cell
	if r, ok := l.cache.get(key); ok {
		r.Source = hit.Source
		return r
	}
	res := Result{Point: hit.Point, Source: hit.Source}
	if f, ok := snap.Index.Locate(hit.Point); ok {
		res.Found, res.RegionID, res.Name, res.Method = true, f.ID, f.Name, MethodContains
	} else if f, d, ok := snap.Index.Nearest(hit.Point, l.maxKm); ok {
		res.Found, res.RegionID, res.Name, res.Method, res.DistanceKm = true, f.ID, f.Name, MethodNearest, d
	}
	l.cache.set(key, res)
	return res
}
