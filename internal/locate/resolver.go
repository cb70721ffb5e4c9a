package locate

import (
	"net"
	"strings"

	"github.com/lionsoul2014/ip2region/binding/golang/xdb"
	"github.com/oschwald/geoip2-golang"
	"github.com/paulmach/orb"
)

// Hit is what an IP database knows about an address.
type Hit struct {
	Source   string
	Country  string
	Province string
	City     string
	Point    orb.Point
	HasPoint bool
}

// Resolver maps an address to a Hit.
type Resolver interface {
	Resolve(ip net.IP) (Hit, bool)
}

// Chain asks resolvers in order; the first hit wins.
type Chain []Resolver

func (c Chain) Resolve(ip net.IP) (Hit, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if h, ok := r.Resolve(ip); ok {
			return h, true
		}
	}
	return Hit{}, false
}

// GeoIP resolves through a MaxMind City database.
type GeoIP struct {
	r *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIP, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIP{r: r}, nil
}

func (g *GeoIP) Close() error { return g.r.Close() }

func (g *GeoIP) Resolve(ip net.IP) (Hit, bool) {
	rec, err := g.r.City(ip)
	if err != nil {
		return Hit{}, false
	}
	h := Hit{
		Source:  "geoip2",
		Country: rec.Country.IsoCode,
		City:    rec.City.Names["en"],
	}
	if len(rec.Subdivisions) > 0 {
		h.Province = rec.Subdivisions[0].Names["en"]
	}
	if rec.Location.Latitude != 0 || rec.Location.Longitude != 0 {
		h.Point = orb.Point{rec.Location.Longitude, rec.Location.Latitude}
		h.HasPoint = true
	}
	if !h.HasPoint && h.Province == "" && h.City == "" {
		return Hit{}, false
	}
	return h, true
}

// IP2Region resolves through an ip2region xdb file, IPv4 only.
type IP2Region struct {
	v4 *xdb.Searcher
}

func OpenIP2Region(v4Path string) (*IP2Region, error) {
	s, err := xdb.NewWithFileOnly(xdb.IPv4, v4Path)
	if err != nil {
		return nil, err
	}
	return &IP2Region{v4: s}, nil
}

func (x *IP2Region) Close() { x.v4.Close() }

func (x *IP2Region) Resolve(ip net.IP) (Hit, bool) {
	if ip.To4() == nil {
		return Hit{}, false
	}
	region, err := x.v4.SearchByStr(ip.String())
	if err != nil || region == "" {
		return Hit{}, false
	}
	h := parseRegion(region)
	if h.Province == "" && h.City == "" {
		return Hit{}, false
	}
	return h, true
}

// parseRegion reads "Country|Region|Province|City|ISP".
func parseRegion(s string) Hit {
	parts := strings.Split(s, "|")
	field := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		v := strings.TrimSpace(parts[i])
		if v == "0" || strings.EqualFold(v, "unknown") {
			return ""
		}
		return v
	}
	return Hit{Source: "ip2region", Country: field(0), Province: field(2), City: field(3)}
}
