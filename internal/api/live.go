package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"regionmap/internal/charts"
	"regionmap/internal/locate"
	"regionmap/internal/logger"
	"regionmap/internal/session"
	"regionmap/internal/theme"
	"regionmap/internal/transport/ws"
	"regionmap/internal/viewport"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
)

type themeResponse struct {
	Mode theme.Mode `json:"mode"`
	Key  string     `json:"key"`
}

func (h *handlers) getTheme(w http.ResponseWriter, r *http.Request) {
	a := h.adapter(r)
	writeJSON(w, http.StatusOK, themeResponse{Mode: a.Mode(), Key: a.Key()})
}

func (h *handlers) putTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1024)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	m, ok := theme.ParseMode(body.Mode)
	if !ok {
		writeError(w, http.StatusBadRequest, "mode must be light or dark")
		return
	}
	a := h.adapter(r)
	a.Set(r.Context(), m)
	writeJSON(w, http.StatusOK, themeResponse{Mode: a.Mode(), Key: a.Key()})
}

func (h *handlers) toggleTheme(w http.ResponseWriter, r *http.Request) {
	a := h.adapter(r)
	m := a.Toggle(r.Context())
	writeJSON(w, http.StatusOK, themeResponse{Mode: m, Key: a.Key()})
}

type locateResponse struct {
	IP string `json:"ip"`
	locate.Result
}

func (h *handlers) whereAmI(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	var res locate.Result
	if h.Locator != nil {
		res = h.Locator.Locate(ip)
	}
	writeJSON(w, http.StatusOK, locateResponse{IP: ip, Result: res})
}

type chartResponse struct {
	charts.Series
	Total float64 `json:"total"`
}

func (h *handlers) chart(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if h.Charts == nil {
		writeError(w, http.StatusNotFound, "unknown series")
		return
	}
	s, err := h.Charts.Series(r.Context(), name)
	if errors.Is(err, charts.ErrUnknownSeries) {
		writeError(w, http.StatusNotFound, "unknown series")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "series unavailable")
		return
	}
	if r.URL.Query().Get("order") == "desc" {
		s.Points = charts.Sorted(s)
	}
	writeJSON(w, http.StatusOK, chartResponse{Series: s, Total: charts.Total(s)})
}

// serveWS mounts a view for the connection and unmounts it when the socket closes.
// focus=ip centres the view on the caller's region when it can be located.
func (h *handlers) serveWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mo := session.MountOptions{Retina: q.Get("retina") == "1"}
	if wv, hv := atoi(q.Get("w")), atoi(q.Get("h")); wv > 0 && hv > 0 {
		mo.Size = viewport.Size{W: min(wv, viewport.MaxSide), H: min(hv, viewport.MaxSide)}
	}
	if q.Get("focus") == "ip" && h.Locator != nil {
		if res := h.Locator.Locate(clientIP(r)); res.Found {
			if f, ok := h.focusPoint(res.RegionID); ok {
				mo.Focus = &f
			}
		}
	}
	ad := h.adapter(r)
	// the handshake response is written by the upgrader, so carry the client
	// cookie over explicitly
	var hdr http.Header
	if c := w.Header().Values("Set-Cookie"); len(c) > 0 {
		hdr = http.Header{"Set-Cookie": c}
	}
	conn, err := h.Upgrader.Upgrade(w, r, hdr)
	if err != nil {
		// the upgrader already answered
		logger.L().Debug("ws_upgrade_failed", "err", err)
		return
	}
	v := h.Views.Mount(context.Background(), ad, mo)
	defer h.Views.Unmount(v.ID)
	_ = ws.Pump(conn, v)
}

func (h *handlers) focusPoint(id string) (orb.Point, bool) {
	ix, _ := h.snapshot()
	if ix == nil {
		return orb.Point{}, false
	}
	f, ok := ix.Get(id)
	if !ok {
		return orb.Point{}, false
	}
	return f.Centroid, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
