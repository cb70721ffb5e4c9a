package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"regionmap/internal/theme"

	"github.com/google/uuid"
)

// ClientCookie carries the client id that namespaces the theme preference.
const ClientCookie = "rm_client"

type clientKey struct{}

// withClient makes sure every request has a client id, issuing a cookie on the
// first visit.
func withClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(ClientCookie); err == nil {
			if u, err := uuid.Parse(c.Value); err == nil {
				id = u.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   365 * 24 * 3600,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   r.TLS != nil,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, id)))
	})
}

func clientID(r *http.Request) string {
	id, _ := r.Context().Value(clientKey{}).(string)
	return id
}

// adapter returns the shared theme adapter of the caller.
func (h *handlers) adapter(r *http.Request) *theme.Adapter {
	return h.Themes.For(r.Context(), theme.KeyFor(clientID(r)), theme.ModeFromHint(r))
}

// clientIP prefers an explicit ip parameter, then the usual proxy headers,
// then the peer address.
func clientIP(r *http.Request) string {
	if q := strings.TrimSpace(r.URL.Query().Get("ip")); q != "" {
		return q
	}
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip"} {
		if x := h.Get(k); x != "" {
			return strings.TrimSpace(x)
		}
	}
	if x := h.Get("forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := x[i+4:]
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			y = strings.Trim(y, "\" ")
			if host, _, err := net.SplitHostPort(y); err == nil {
				return host
			}
			return strings.Trim(y, "[]")
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
