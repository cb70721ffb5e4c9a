package middleware

import (
	"net"
	"net/http"
	"os"
	"strings"

	"regionmap/internal/logger"
)

// Allowlist admits requests from listed addresses and networks only; the rest
// get 403. The source address is the peer unless RealIPHeader names a header
// whose first valid address is trusted instead.
type Allowlist struct {
	ips          map[string]struct{}
	nets         []*net.IPNet
	RealIPHeader string
}

// NewAllowlist parses single addresses and CIDRs; unparsable entries are
// skipped.
func NewAllowlist(entries []string) *Allowlist {
	a := &Allowlist{ips: map[string]struct{}{}}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			if _, n, err := net.ParseCIDR(e); err == nil {
				a.nets = append(a.nets, n)
			}
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			a.ips[ip.String()] = struct{}{}
		}
	}
	return a
}

// AllowlistFromEnv builds the guard of an operational endpoint from
// <PREFIX>_ALLOW (comma separated addresses and CIDRs),
// <PREFIX>_ALLOW_LOCAL (loopback, default true) and <PREFIX>_REAL_IP_HEADER.
// It returns nil when <PREFIX>_GUARD_ENABLE is not true.
func AllowlistFromEnv(prefix string) *Allowlist {
	if os.Getenv(prefix+"_GUARD_ENABLE") != "true" {
		return nil
	}
	entries := strings.Split(os.Getenv(prefix+"_ALLOW"), ",")
	if os.Getenv(prefix+"_ALLOW_LOCAL") != "false" {
		entries = append(entries, "127.0.0.1", "::1")
	}
	a := NewAllowlist(entries)
	a.RealIPHeader = strings.TrimSpace(os.Getenv(prefix + "_REAL_IP_HEADER"))
	logger.L().Info("allowlist_enabled", "guard", strings.ToLower(prefix), "ips", len(a.ips), "cidrs", len(a.nets))
	return a
}

// Allowed reports whether ip is listed.
func (a *Allowlist) Allowed(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if _, ok := a.ips[ip.String()]; ok {
		return true
	}
	for _, n := range a.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (a *Allowlist) sourceIP(r *http.Request) net.IP {
	if a.RealIPHeader != "" {
		if raw := r.Header.Get(a.RealIPHeader); raw != "" {
			if ip := net.ParseIP(strings.TrimSpace(strings.Split(raw, ",")[0])); ip != nil {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

// Wrap guards next. A nil Allowlist lets everything through.
func (a *Allowlist) Wrap(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := a.sourceIP(r)
		if !a.Allowed(ip) {
			logger.L().Debug("allowlist_block", "path", r.URL.Path, "ip", ip)
			w.Header().Set("content-type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
