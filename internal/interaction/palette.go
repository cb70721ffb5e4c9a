package interaction

import (
	"regionmap/internal/theme"
	"regionmap/internal/viewport"
)

// Palette is the pair of styles a region can wear under one mode.
type Palette struct {
	Default   viewport.Style `yaml:"default" json:"default"`
	Highlight viewport.Style `yaml:"highlight" json:"highlight"`
}

// Palettes maps each mode to its palette.
type Palettes map[theme.Mode]Palette

// DefaultPalettes are thin translucent outlines with a bright, filled and
// slightly enlarged highlight.
func DefaultPalettes() Palettes {
	return Palettes{
		theme.Light: {
			Default:   viewport.Style{Color: "rgba(31, 41, 55, 0.35)", Weight: 0.8, FillColor: "transparent", FillOpacity: 0},
			Highlight: viewport.Style{Color: "#2563EB", Weight: 3, FillColor: "rgba(37, 99, 235, 0.25)", FillOpacity: 0.5, Scale: 1.05},
		},
		theme.Dark: {
			Default:   viewport.Style{Color: "rgba(147, 197, 253, 0.35)", Weight: 0.8, FillColor: "transparent", FillOpacity: 0},
			Highlight: viewport.Style{Color: "#00FFFF", Weight: 3, FillColor: "rgba(0, 255, 255, 0.25)", FillOpacity: 0.5, Scale: 1.05},
		},
	}
}

// For returns the palette of m, falling back to the built-in one when p has
// no entry for it.
func (p Palettes) For(m theme.Mode) Palette {
	if pal, ok := p[m]; ok {
		return pal
	}
	return DefaultPalettes()[m]
}
