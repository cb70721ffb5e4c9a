package session

import (
	"regionmap/internal/interaction"
	"regionmap/internal/regionsrc"
	"regionmap/internal/theme"
	"regionmap/internal/viewport"
)

// Client event types.
const (
	EvEnter   = "enter"
	EvLeave   = "leave"
	EvPan     = "pan"
	EvDrag    = "drag"
	EvDragEnd = "dragend"
	EvZoom    = "zoom"
	EvResize  = "resize"
	EvTheme   = "theme"
)

// Event is one message from the client. Only the fields of its Type are read.
type Event struct {
	Type  string   `json:"type"`
	ID    string   `json:"id,omitempty"`
	DX    float64  `json:"dx,omitempty"`
	DY    float64  `json:"dy,omitempty"`
	Delta int      `json:"delta,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	W     int      `json:"w,omitempty"`
	H     int      `json:"h,omitempty"`
	Mode  string   `json:"mode,omitempty"`
}

// Base is the tile layer of a frame.
type Base struct {
	viewport.BaseLayer
	Tiles []viewport.TileRef `json:"tiles"`
}

// RegionView is one drawn region. Interactive is false for regions that are
// drawn but ignore pointer events.
type RegionView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Path        string         `json:"path"`
	Style       viewport.Style `json:"style"`
	Interactive bool           `json:"interactive"`
	Anchor      [2]float64     `json:"anchor"`
}

// Frame is a full redraw.
type Frame struct {
	Type     string           `json:"type"`
	Status   regionsrc.Status `json:"status"`
	Mode     theme.Mode       `json:"mode"`
	Viewport viewport.State   `json:"viewport"`
	Base     Base             `json:"base"`
	Regions  []RegionView     `json:"regions"`
	Order    []string         `json:"order"`
	Active   string           `json:"active,omitempty"`
	Revision uint64           `json:"revision"`
}

// Patch restyles some regions without a redraw.
type Patch struct {
	Type string `json:"type"`
	interaction.Patch
}

// ThemeChanged announces a new mode; a frame follows.
type ThemeChanged struct {
	Type string     `json:"type"`
	Mode theme.Mode `json:"mode"`
}
