package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"regionmap/internal/charts"
	"regionmap/internal/interaction"
	"regionmap/internal/regionindex"
	"regionmap/internal/regionsrc"
	"regionmap/internal/theme"
	"regionmap/internal/viewport"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// LatLon is a "[lat, lon]" pair as map people write it.
type LatLon [2]float64

// Point converts to orb's lon/lat order.
func (p LatLon) Point() orb.Point { return orb.Point{p[1], p[0]} }

// Profile is the country-specific part of the configuration.
type Profile struct {
	Name      string                            `yaml:"name"`
	Sources   []regionsrc.SourceDescriptor      `yaml:"sources"`
	Object    string                            `yaml:"object"`
	IDKeys    []string                          `yaml:"id_keys"`
	NameKeys  []string                          `yaml:"name_keys"`
	Center    LatLon                            `yaml:"center"`
	Zoom      int                               `yaml:"zoom"`
	MinZoom   int                               `yaml:"min_zoom"`
	MaxZoom   int                               `yaml:"max_zoom"`
	MaxBounds [2]LatLon                         `yaml:"max_bounds"`
	Viscosity float64                           `yaml:"viscosity"`
	Size      viewport.Size                     `yaml:"size"`
	Tiles     map[theme.Mode]viewport.BaseLayer `yaml:"tiles"`
	Palettes  interaction.Palettes              `yaml:"palettes"`
	Charts    []charts.Series                   `yaml:"charts"`
}

// DefaultProfile is the Türkiye provinces map.
func DefaultProfile() Profile {
	const attribution = "&copy; OpenStreetMap contributors &copy; CARTO"
	return Profile{
		Name: "tr-provinces",
		Sources: []regionsrc.SourceDescriptor{
			{URL: "/tr-cities.json", Format: regionsrc.FormatGeoJSON},
			{URL: "/turkey-il.json", Format: regionsrc.FormatGeoJSON},
		},
		IDKeys:    []string{"id", "plaka", "code"},
		NameKeys:  []string{"name", "NAME", "il", "NAME_1"},
		Center:    LatLon{38.68, 35.24},
		Zoom:      6,
		MinZoom:   5,
		MaxZoom:   12,
		MaxBounds: [2]LatLon{{35.5, 25.5}, {42.5, 45.0}},
		Viscosity: 1.0,
		Size:      viewport.Size{W: 800, H: 520},
		Tiles: map[theme.Mode]viewport.BaseLayer{
			theme.Light: {Template: "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png", Attribution: attribution, Subdomains: "abcd"},
			theme.Dark:  {Template: "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png", Attribution: attribution, Subdomains: "abcd"},
		},
		Palettes: interaction.DefaultPalettes(),
		Charts: []charts.Series{
			{Name: "consumption", Title: "Aylık Tüketim", Kind: "bar", Points: []charts.Point{
				{Label: "Ocak", Value: 4210}, {Label: "Şubat", Value: 3875}, {Label: "Mart", Value: 5120},
				{Label: "Nisan", Value: 2990}, {Label: "Mayıs", Value: 6040}, {Label: "Haziran", Value: 4480},
			}},
			{Name: "production", Title: "Aylık Üretim", Kind: "line", Points: []charts.Point{
				{Label: "Ocak", Value: 3560}, {Label: "Şubat", Value: 4120}, {Label: "Mart", Value: 6210},
				{Label: "Nisan", Value: 5480}, {Label: "Mayıs", Value: 3905}, {Label: "Haziran", Value: 6630},
			}},
			{Name: "sectors", Title: "Sektörel Dağılım", Kind: "pie", Points: []charts.Point{
				{Label: "Sanayi", Value: 342}, {Label: "Konut", Value: 268}, {Label: "Ticaret", Value: 187}, {Label: "Tarım", Value: 121},
			}},
			{Name: "power", Title: "Anlık Güç", Kind: "area", Points: []charts.Point{
				{Label: "00:00", Value: 88}, {Label: "04:00", Value: 61}, {Label: "08:00", Value: 174},
				{Label: "12:00", Value: 231}, {Label: "16:00", Value: 209}, {Label: "20:00", Value: 143},
			}},
		},
	}
}

// LoadProfile reads a YAML profile over DefaultProfile: fields the file
// leaves out keep their defaults. An empty path returns the default.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("config: read profile: %w", err)
	}
	return ParseProfile(b)
}

// ParseProfile decodes YAML over DefaultProfile and validates the result.
func ParseProfile(b []byte) (Profile, error) {
	p := DefaultProfile()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("config: parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the profile is usable.
func (p Profile) Validate() error {
	if len(p.Sources) == 0 {
		return errors.New("config: profile needs at least one source")
	}
	for i, s := range p.Sources {
		if s.URL == "" {
			return fmt.Errorf("config: source %d has no url", i)
		}
		if _, err := regionsrc.ParseFormat(string(s.Format)); err != nil {
			return fmt.Errorf("config: source %d: %w", i, err)
		}
	}
	if err := p.Viewport().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, m := range []theme.Mode{theme.Light, theme.Dark} {
		if p.Tiles[m].Template == "" {
			return fmt.Errorf("config: no %s tile template", m)
		}
	}
	return nil
}

// Viewport returns the viewport limits of the profile.
func (p Profile) Viewport() viewport.Config {
	sw, ne := p.MaxBounds[0].Point(), p.MaxBounds[1].Point()
	return viewport.Config{
		MaxBounds: orb.Bound{Min: sw, Max: ne},
		MinZoom:   p.MinZoom,
		MaxZoom:   p.MaxZoom,
		Viscosity: p.Viscosity,
	}
}

// IndexOptions returns how features of this profile are keyed.
func (p Profile) IndexOptions() regionindex.Options {
	return regionindex.Options{Object: p.Object, IDKeys: p.IDKeys, NameKeys: p.NameKeys}
}

// BaseLayer returns the tile source for m.
func (p Profile) BaseLayer(m theme.Mode) viewport.BaseLayer {
	return p.Tiles[m]
}
