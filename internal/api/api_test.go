package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"regionmap/internal/charts"
	"regionmap/internal/config"
	"regionmap/internal/locate"
	"regionmap/internal/regionindex"
	"regionmap/internal/regionsrc"
	"regionmap/internal/session"
	"regionmap/internal/theme"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const provinces = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Ankara"},"geometry":{"type":"Polygon","coordinates":[[[32,39],[33.5,39],[33.5,40.5],[32,40.5],[32,39]]]}},
 {"type":"Feature","properties":{"name":"Konya"},"geometry":{"type":"Polygon","coordinates":[[[31.5,37.5],[34,37.5],[34,39],[31.5,39],[31.5,37.5]]]}}
]}`

type staticLoader struct{ res regionsrc.LoadResult }

func (s staticLoader) Load(context.Context, func() bool) regionsrc.LoadResult { return s.res }

type fakeLocator map[string]locate.Result

func (f fakeLocator) Locate(addr string) locate.Result { return f[addr] }

func loadResult(t *testing.T) regionsrc.LoadResult {
	t.Helper()
	d, err := regionsrc.Decode(regionsrc.FormatGeoJSON, []byte(provinces))
	require.NoError(t, err)
	return regionsrc.LoadResult{
		Status: regionsrc.StatusLoaded,
		Source: regionsrc.SourceDescriptor{URL: "/tr-cities.json", Format: regionsrc.FormatGeoJSON},
		Data:   d,
	}
}

func newDeps(t *testing.T, loaded bool) Deps {
	t.Helper()
	p := config.DefaultProfile()
	cat := &regionindex.Catalog{}
	res := loadResult(t)
	if loaded {
		ix, st, err := regionindex.Build(res.Data, p.IndexOptions())
		require.NoError(t, err)
		cat.Publish(regionindex.Snapshot{Status: regionsrc.StatusLoaded, Source: res.Source, Index: ix, Stats: st})
	}
	views := session.NewManager(session.Options{
		Viewport: p.Viewport(),
		Center:   p.Center.Point(),
		Zoom:     p.Zoom,
		Size:     p.Size,
		Tiles:    p.Tiles,
		Palettes: p.Palettes,
		Index:    p.IndexOptions(),
	}, staticLoader{res: res}, cat)
	t.Cleanup(views.Close)
	return Deps{
		Profile: p,
		Catalog: cat,
		Views:   views,
		Themes:  theme.NewRegistry(theme.NewMemoryStore()),
		Locator: fakeLocator{"88.255.1.1": {Found: true, RegionID: "ankara", Name: "Ankara", Method: locate.MethodContains, Source: "geoip2"}},
		Charts:  charts.NewStatic(p.Charts),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestRegionsBeforeLoad(t *testing.T) {
	h := BuildRoutes(newDeps(t, false))
	rec := do(t, h, http.MethodGet, "/regions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("cache-control"))
	m := decode(t, rec)
	assert.Equal(t, "pending", m["status"])
	assert.Equal(t, "FeatureCollection", m["type"])
	assert.Empty(t, m["features"])

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/regions/ankara", "").Code)
}

func TestRegionsAndRegion(t *testing.T) {
	h := BuildRoutes(newDeps(t, true))
	m := decode(t, do(t, h, http.MethodGet, "/regions", ""))
	assert.Equal(t, "loaded", m["status"])
	assert.Equal(t, "/tr-cities.json", m["source"])
	feats, ok := m["features"].([]any)
	require.True(t, ok)
	require.Len(t, feats, 2)
	props := feats[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "ankara", props["id"])
	assert.Equal(t, "Ankara", props["name"])

	rec := do(t, h, http.MethodGet, "/regions/konya", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "konya", decode(t, rec)["id"])

	// display names resolve too
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/regions/Konya", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/regions/izmir", "").Code)
}

func clientCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == ClientCookie {
			return c
		}
	}
	t.Fatal("no client cookie")
	return nil
}

func TestThemePersistsPerClient(t *testing.T) {
	h := BuildRoutes(newDeps(t, true))

	first := do(t, h, http.MethodGet, "/theme", "")
	c := clientCookie(t, first)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "light", decode(t, first)["mode"])
	assert.Equal(t, theme.KeyFor(c.Value), decode(t, first)["key"])

	rec := do(t, h, http.MethodPut, "/theme", `{"mode":"dark"}`, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dark", decode(t, rec)["mode"])
	assert.Empty(t, rec.Result().Cookies(), "known client gets no new cookie")

	assert.Equal(t, "dark", decode(t, do(t, h, http.MethodGet, "/theme", "", c))["mode"])
	assert.Equal(t, "light", decode(t, do(t, h, http.MethodGet, "/theme", ""))["mode"])

	assert.Equal(t, "light", decode(t, do(t, h, http.MethodPost, "/theme/toggle", "", c))["mode"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/theme", `{"mode":"sepia"}`, c).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/theme", `{`, c).Code)

	// a forged cookie is replaced
	forged := do(t, h, http.MethodGet, "/theme", "", &http.Cookie{Name: ClientCookie, Value: "../../etc"})
	assert.NotEqual(t, "../../etc", clientCookie(t, forged).Value)
}

func TestThemeFollowsSystemHintForNewClients(t *testing.T) {
	h := BuildRoutes(newDeps(t, true))
	req := httptest.NewRequest(http.MethodGet, "/theme", nil)
	req.Header.Set("Sec-CH-Prefers-Color-Scheme", "dark")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "dark", decode(t, rec)["mode"])

	rec = do(t, h, http.MethodGet, "/map/config?prefers=dark", "")
	m := decode(t, rec)
	assert.Equal(t, "dark", m["mode"])
	base := m["base"].(map[string]any)
	assert.Contains(t, base["template"], "dark_all")
}

func TestMapConfig(t *testing.T) {
	h := BuildRoutes(newDeps(t, true))
	m := decode(t, do(t, h, http.MethodGet, "/map/config", ""))
	assert.Equal(t, "tr-provinces", m["name"])
	assert.Equal(t, "light", m["mode"])
	assert.Equal(t, "loaded", m["status"])
	vp := m["viewport"].(map[string]any)
	assert.EqualValues(t, 5, vp["min_zoom"])
	assert.EqualValues(t, 12, vp["max_zoom"])
	assert.Contains(t, m["base"].(map[string]any)["template"], "light_all")
	assert.Len(t, m["charts"], 4)
	assert.Contains(t, m["palettes"], "dark")
}

func TestOverlaySVG(t *testing.T) {
	h := BuildRoutes(newDeps(t, true))
	rec := do(t, h, http.MethodGet, "/map/overlay.svg?lat=39&lon=33&zoom=6&w=640&h=480&hover=ankara", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("content-type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, `<svg xmlns="http://www.w3.org/2000/svg" width="640" height="480"`), body)
	assert.Contains(t, body, `data-region="ankara"`)
	assert.Contains(t, body, `data-region="konya"`)
	assert.Contains(t, body, `stroke="#2563EB"`)
	assert.Contains(t, body, "transform=")
	// the hovered region is painted last
	assert.Greater(t, strings.Index(body, `data-region="ankara"`), strings.Index(body, `data-region="konya"`))

	empty := do(t, BuildRoutes(newDeps(t, false)), http.MethodGet, "/map/overlay.svg", "")
	require.Equal(t, http.StatusOK, empty.Code)
	assert.NotContains(t, empty.Body.String(), "<path")
}

func TestLocateUsesForwardedAddress(t *testing.T) {
	d := newDeps(t, true)
	h := BuildRoutes(d)
	req := httptest.NewRequest(http.MethodGet, "/locate", nil)
	req.Header.Set("X-Forwarded-For", "88.255.1.1, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	m := decode(t, rec)
	assert.Equal(t, "88.255.1.1", m["ip"])
	assert.Equal(t, true, m["found"])
	assert.Equal(t, "ankara", m["id"])

	assert.Equal(t, false, decode(t, do(t, h, http.MethodGet, "/locate?ip=127.0.0.1", ""))["found"])

	d.Locator = nil
	assert.Equal(t, false, decode(t, do(t, BuildRoutes(d), http.MethodGet, "/locate", ""))["found"])
}

func TestCharts(t *testing.T) {
	h := BuildRoutes(newDeps(t, true))
	rec := do(t, h, http.MethodGet, "/charts/consumption", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec)
	assert.Equal(t, "bar", m["kind"])
	assert.InDelta(t, 26715, m["total"], 0.001)
	assert.Len(t, m["points"], 6)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/charts/weather", "").Code)

	m = decode(t, do(t, h, http.MethodGet, "/charts/consumption?order=desc", ""))
	pts := m["points"].([]any)
	require.Len(t, pts, 6)
	for i := 1; i < len(pts); i++ {
		prev := pts[i-1].(map[string]any)["value"].(float64)
		cur := pts[i].(map[string]any)["value"].(float64)
		assert.GreaterOrEqual(t, prev, cur)
	}
	assert.InDelta(t, 26715, m["total"], 0.001)
}

func TestMapConfigListsProviderCharts(t *testing.T) {
	d := newDeps(t, true)
	d.Charts = charts.Chain{charts.NewStatic([]charts.Series{{Name: "imports"}})}
	m := decode(t, do(t, BuildRoutes(d), http.MethodGet, "/map/config", ""))
	assert.Equal(t, []any{"imports"}, m["charts"])
}

func TestWebsocketMountsView(t *testing.T) {
	d := newDeps(t, true)
	srv := httptest.NewServer(BuildRoutes(d))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?w=640&h=480"
	c, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer c.Close()
	var cookie bool
	for _, ck := range resp.Cookies() {
		cookie = cookie || ck.Name == ClientCookie
	}
	assert.True(t, cookie, "client cookie on the handshake")

	read := func() map[string]any {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var m map[string]any
		require.NoError(t, c.ReadJSON(&m))
		return m
	}
	first := read()
	assert.Equal(t, "frame", first["type"])
	assert.Equal(t, "pending", first["status"])
	assert.Equal(t, map[string]any{"w": 640.0, "h": 480.0}, first["viewport"].(map[string]any)["size"])

	loaded := read()
	assert.Equal(t, "loaded", loaded["status"])
	assert.Len(t, loaded["regions"], 2)
	assert.Equal(t, 1, d.Views.Len())

	require.NoError(t, c.WriteJSON(session.Event{Type: session.EvEnter, ID: "konya"}))
	patch := read()
	assert.Equal(t, "patch", patch["type"])
	assert.Equal(t, "konya", patch["raise"])

	require.NoError(t, c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return d.Views.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"peer", nil, "192.0.2.7:5555", "192.0.2.7"},
		{"xff", map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.1"}, "10.0.0.2:1", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1", "198.51.100.4"},
		{"forwarded", map[string]string{"Forwarded": `for="[2001:db8::1]:4711";proto=https`}, "10.0.0.2:1", "2001:db8::1"},
		{"forwarded bare", map[string]string{"Forwarded": "for=192.0.2.60, for=10.0.0.1"}, "10.0.0.2:1", "192.0.2.60"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/locate", nil)
		r.RemoteAddr = tc.remote
		for k, v := range tc.header {
			r.Header.Set(k, v)
		}
		assert.Equal(t, tc.want, clientIP(r), tc.name)
	}

	r := httptest.NewRequest(http.MethodGet, "/locate?ip=2a02:e0::1", nil)
	assert.Equal(t, "2a02:e0::1", clientIP(r))
}
