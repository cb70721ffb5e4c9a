// Package theme holds the color mode every map view styles itself with.
//
// A mode is persisted per client under KeyFor(client) and falls back to the
// client's advertised system preference when nothing was stored. Consumers
// read Mode() at the moment they compute a style and may Subscribe to be told
// about changes; they never cache the value.
package theme

import (
	"net/http"
	"strings"
)

// Mode is the color mode.
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// DefaultKey is the persisted preference key. Per-client keys append
// ":<client-id>".
const DefaultKey = "regionmap-theme"

// KeyFor namespaces DefaultKey by client id. An empty id yields DefaultKey.
func KeyFor(client string) string {
	if client == "" {
		return DefaultKey
	}
	return DefaultKey + ":" + client
}

// ParseMode accepts "dark" and "light" in any case.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Dark:
		return Dark, true
	case Light:
		return Light, true
	}
	return "", false
}

// Opposite returns the other mode.
func (m Mode) Opposite() Mode {
	if m == Dark {
		return Light
	}
	return Dark
}

func (m Mode) String() string { return string(m) }

// ModeFromHint reads the system color preference a client advertised, from
// the prefers query parameter or the Sec-CH-Prefers-Color-Scheme client hint.
// Without either it reports Light.
func ModeFromHint(r *http.Request) Mode {
	if r == nil {
		return Light
	}
	if m, ok := ParseMode(r.URL.Query().Get("prefers")); ok {
		return m
	}
	if m, ok := ParseMode(strings.Trim(r.Header.Get("Sec-CH-Prefers-Color-Scheme"), `"`)); ok {
		return m
	}
	return Light
}
