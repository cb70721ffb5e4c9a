// Package interaction runs the hover state machine of the region overlay.
//
// Each region is either Default or Hover and at most one region is active.
// Every enter clears the active slot before setting it, so enter/leave pairs
// from adjacent shapes may arrive in any order without leaving two regions
// highlighted. Styles are computed from the mode read at the moment of each
// transition.
package interaction

import (
	"log/slog"
	"sync"

	"regionmap/internal/logger"
	"regionmap/internal/metrics"
	"regionmap/internal/theme"
	"regionmap/internal/viewport"
)

// RegionState is the hover state of one region.
type RegionState int

const (
	Default RegionState = iota
	Hover
)

func (s RegionState) String() string {
	if s == Hover {
		return "hover"
	}
	return "default"
}

// ModeSource supplies the current color mode.
type ModeSource interface {
	Mode() theme.Mode
}

// Change is a new paint for one region.
type Change struct {
	ID    string         `json:"id"`
	Style viewport.Style `json:"style"`
}

// Patch is what one transition changed. Raise names a region moved to the top
// of the paint order.
type Patch struct {
	Changes []Change `json:"changes"`
	Raise   string   `json:"raise,omitempty"`
}

// Empty reports whether nothing changed.
func (p Patch) Empty() bool { return len(p.Changes) == 0 && p.Raise == "" }

// Controller paints the shapes of one layer. It is safe for concurrent use,
// but the layer it paints must not be touched elsewhere concurrently.
type Controller struct {
	mu       sync.Mutex
	layer    *viewport.Layer
	modes    ModeSource
	palettes Palettes
	attached map[string]bool
	active   string
	log      *slog.Logger
}

func NewController(layer *viewport.Layer, modes ModeSource, palettes Palettes) *Controller {
	if palettes == nil {
		palettes = DefaultPalettes()
	}
	return &Controller{
		layer:    layer,
		modes:    modes,
		palettes: palettes,
		attached: make(map[string]bool),
		log:      logger.Component("interaction"),
	}
}

func (c *Controller) palette() Palette {
	return c.palettes.For(c.modes.Mode())
}

// Attach wires every shape of the layer that can be drawn and paints it with
// the default style. Shapes without a drawable path are skipped and stay
// inert. It returns the number of attached regions.
func (c *Controller) Attach() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = make(map[string]bool, c.layer.Len())
	c.active = ""
	pal := c.palette()
	for _, id := range c.layer.Order() {
		if !c.layer.Renderable(id) {
			c.log.Warn("region_not_renderable", "id", id)
			continue
		}
		c.attached[id] = true
		c.layer.Paint(id, pal.Default)
	}
	return len(c.attached)
}

// Detach drops every handler and the active slot. Later events are ignored
// until the next Attach.
func (c *Controller) Detach() {
	c.mu.Lock()
	c.attached = make(map[string]bool)
	c.active = ""
	c.mu.Unlock()
}

// Attached reports whether id receives events.
func (c *Controller) Attached(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached[id]
}

// Active returns the highlighted region, if any.
func (c *Controller) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}

// State returns the hover state of id.
func (c *Controller) State(id string) RegionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != "" && c.active == id {
		return Hover
	}
	return Default
}

// Enter highlights id: any previously active region is reset first, then id is
// painted with the highlight style and raised above its siblings. Unknown or
// unattached ids are ignored.
func (c *Controller) Enter(id string) Patch {
	c.mu.Lock()
	defer c.mu.Unlock()
	var p Patch
	if !c.attached[id] {
		return p
	}
	pal := c.palette()
	prev := c.active
	c.active = ""
	if prev != "" && prev != id {
		if c.layer.Paint(prev, pal.Default) {
			p.Changes = append(p.Changes, Change{ID: prev, Style: pal.Default})
		}
		metrics.HoverTransitionsTotal.WithLabelValues("handoff").Inc()
	}
	c.active = id
	if c.layer.Paint(id, pal.Highlight) {
		p.Changes = append(p.Changes, Change{ID: id, Style: pal.Highlight})
	}
	if c.layer.BringToFront(id) {
		p.Raise = id
	}
	if prev != id {
		metrics.HoverTransitionsTotal.WithLabelValues("enter").Inc()
	}
	return p
}

// Leave resets id to the default style. Leaving a region that is not active
// is a no-op.
func (c *Controller) Leave(id string) Patch {
	c.mu.Lock()
	defer c.mu.Unlock()
	var p Patch
	if !c.attached[id] || c.active != id {
		return p
	}
	c.active = ""
	pal := c.palette()
	if c.layer.Paint(id, pal.Default) {
		p.Changes = append(p.Changes, Change{ID: id, Style: pal.Default})
	}
	metrics.HoverTransitionsTotal.WithLabelValues("leave").Inc()
	return p
}

// Restyle repaints every attached region for the current mode, keeping the
// active region highlighted.
func (c *Controller) Restyle() Patch {
	c.mu.Lock()
	defer c.mu.Unlock()
	pal := c.palette()
	var p Patch
	for _, id := range c.layer.Order() {
		if !c.attached[id] {
			continue
		}
		st := pal.Default
		if id == c.active {
			st = pal.Highlight
		}
		if c.layer.Paint(id, st) {
			p.Changes = append(p.Changes, Change{ID: id, Style: st})
		}
	}
	return p
}
