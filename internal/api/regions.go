package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"regionmap/internal/charts"
	"regionmap/internal/interaction"
	"regionmap/internal/regionindex"
	"regionmap/internal/regionsrc"
	"regionmap/internal/theme"
	"regionmap/internal/viewport"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type regionsResponse struct {
	Type     string             `json:"type"`
	Status   regionsrc.Status   `json:"status"`
	Source   string             `json:"source,omitempty"`
	Stats    *regionindex.Stats `json:"stats,omitempty"`
	Features []*geojson.Feature `json:"features"`
}

// snapshot returns the loaded index, or nil with the current status.
func (h *handlers) snapshot() (*regionindex.Index, regionindex.Snapshot) {
	snap, ok := h.Catalog.Current()
	if !ok {
		return nil, regionindex.Snapshot{Status: regionsrc.StatusPending}
	}
	if snap.Status != regionsrc.StatusLoaded || snap.Index == nil {
		return nil, snap
	}
	return snap.Index, snap
}

func (h *handlers) regions(w http.ResponseWriter, r *http.Request) {
	ix, snap := h.snapshot()
	resp := regionsResponse{Type: "FeatureCollection", Status: snap.Status, Features: []*geojson.Feature{}}
	if ix != nil {
		resp.Source = snap.Source.URL
		resp.Stats = &snap.Stats
		resp.Features = ix.FeatureCollection().Features
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) region(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ix, _ := h.snapshot()
	if ix == nil {
		writeError(w, http.StatusNotFound, "regions not loaded")
		return
	}
	f, ok := ix.Get(id)
	if !ok {
		f, ok = ix.ByName(id)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown region")
		return
	}
	writeJSON(w, http.StatusOK, f.GeoJSON())
}

type viewportConfig struct {
	Center    orb.Point     `json:"center"`
	Zoom      int           `json:"zoom"`
	MinZoom   int           `json:"min_zoom"`
	MaxZoom   int           `json:"max_zoom"`
	MaxBounds orb.Bound     `json:"max_bounds"`
	Viscosity float64       `json:"viscosity"`
	Size      viewport.Size `json:"size"`
}

type mapConfigResponse struct {
	Name     string               `json:"name"`
	Mode     theme.Mode           `json:"mode"`
	Viewport viewportConfig       `json:"viewport"`
	Base     viewport.BaseLayer   `json:"base"`
	Palettes interaction.Palettes `json:"palettes"`
	Status   regionsrc.Status     `json:"status"`
	Charts   []string             `json:"charts"`
}

func (h *handlers) mapConfig(w http.ResponseWriter, r *http.Request) {
	p := h.Profile
	mode := h.adapter(r).Mode()
	vc := p.Viewport()
	_, snap := h.snapshot()
	names := make([]string, 0, len(p.Charts))
	if l, ok := h.Charts.(charts.Lister); ok {
		names = append(names, l.Names()...)
	} else {
		for _, s := range p.Charts {
			names = append(names, s.Name)
		}
	}
	writeJSON(w, http.StatusOK, mapConfigResponse{
		Name: p.Name,
		Mode: mode,
		Viewport: viewportConfig{
			Center:    p.Center.Point(),
			Zoom:      p.Zoom,
			MinZoom:   vc.MinZoom,
			MaxZoom:   vc.MaxZoom,
			MaxBounds: vc.MaxBounds,
			Viscosity: vc.Viscosity,
			Size:      p.Size,
		},
		Base:     p.BaseLayer(mode),
		Palettes: p.Palettes,
		Status:   snap.Status,
		Charts:   names,
	})
}

// overlay renders the region layer for one viewport as SVG. Without loaded
// regions the document is empty, matching a map with no overlay.
func (h *handlers) overlay(w http.ResponseWriter, r *http.Request) {
	p := h.Profile
	q := r.URL.Query()
	center := p.Center.Point()
	if v, err := strconv.ParseFloat(q.Get("lon"), 64); err == nil {
		center[0] = v
	}
	if v, err := strconv.ParseFloat(q.Get("lat"), 64); err == nil {
		center[1] = v
	}
	zoom := p.Zoom
	if v, err := strconv.Atoi(q.Get("zoom")); err == nil {
		zoom = v
	}
	size := p.Size
	if v, err := strconv.Atoi(q.Get("w")); err == nil && v > 0 {
		size.W = min(v, viewport.MaxSide)
	}
	if v, err := strconv.Atoi(q.Get("h")); err == nil && v > 0 {
		size.H = min(v, viewport.MaxSide)
	}

	vp := viewport.New(p.Viewport(), center, zoom, size)
	layer := viewport.NewLayer()
	if ix, _ := h.snapshot(); ix != nil {
		layer.Mount(ix.Features())
		ctrl := interaction.NewController(layer, h.adapter(r), p.Palettes)
		ctrl.Attach()
		if hover := q.Get("hover"); hover != "" {
			ctrl.Enter(hover)
		}
	}
	var buf bytes.Buffer
	if err := viewport.Render(&buf, vp, layer); err != nil {
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("content-type", "image/svg+xml")
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
