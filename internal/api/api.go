// Package api registers the HTTP surface of the map service under one chi
// router, keeping the entry point free of handler code.
package api

import (
	"encoding/json"
	"net/http"

	"regionmap/internal/charts"
	"regionmap/internal/config"
	"regionmap/internal/locate"
	"regionmap/internal/regionindex"
	"regionmap/internal/session"
	"regionmap/internal/theme"
	"regionmap/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Locator places an address on the map.
type Locator interface {
	Locate(addr string) locate.Result
}

// Deps are the collaborators of the handlers. Locator and Charts may be nil.
type Deps struct {
	Profile  config.Profile
	Catalog  *regionindex.Catalog
	Views    *session.Manager
	Themes   *theme.Registry
	Locator  Locator
	Charts   charts.Provider
	Upgrader *websocket.Upgrader
}

type handlers struct {
	Deps
}

// BuildRoutes returns the API router; the caller mounts it under the API base.
func BuildRoutes(d Deps) http.Handler {
	if d.Upgrader == nil {
		d.Upgrader = ws.NewUpgrader(nil)
	}
	h := &handlers{Deps: d}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withClient)

	r.Get("/regions", h.regions)
	r.Get("/regions/{id}", h.region)
	r.Route("/map", func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json", "image/svg+xml"))
		r.Get("/config", h.mapConfig)
		r.Get("/overlay.svg", h.overlay)
	})
	r.Get("/theme", h.getTheme)
	r.Put("/theme", h.putTheme)
	r.Post("/theme/toggle", h.toggleTheme)
	r.Get("/locate", h.whereAmI)
	r.Get("/charts/{name}", h.chart)
	r.Get("/ws", h.serveWS)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
