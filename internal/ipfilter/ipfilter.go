// Package ipfilter restricts the metrics scrape endpoint to an
// operator-configured allowlist of IPs and CIDR ranges, read straight out
// of the METRICS_ALLOWED_IPS environment value.
package ipfilter

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Allowlist checks an inbound request's client IP against a configured
// set of networks.
type Allowlist struct {
	networks []*net.IPNet
	logger   *slog.Logger
}

// New parses rawCSV — a comma-separated list of IPs/CIDRs, as read
// directly from METRICS_ALLOWED_IPS — into an Allowlist. A blank value,
// or one containing only blank entries, yields an Allowlist that permits
// every request: /metrics is assumed to sit behind a private network
// when no allowlist is configured.
func New(rawCSV string, logger *slog.Logger) *Allowlist {
	a := &Allowlist{logger: logger}
	for _, entry := range strings.Split(rawCSV, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		network, err := parseNetwork(entry)
		if err != nil {
			logger.Warn("ignoring invalid METRICS_ALLOWED_IPS entry", "entry", entry, "error", err)
			continue
		}
		a.networks = append(a.networks, network)
	}
	return a
}

func parseNetwork(entry string) (*net.IPNet, error) {
	if strings.Contains(entry, "/") {
		_, network, err := net.ParseCIDR(entry)
		return network, err
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("not a valid IP or CIDR")
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// Enabled reports whether any networks were configured.
func (a *Allowlist) Enabled() bool {
	return len(a.networks) > 0
}

// Count returns the number of configured networks.
func (a *Allowlist) Count() int {
	return len(a.networks)
}

// Permits reports whether ip falls within a configured network. An
// Allowlist with no configured networks permits everything.
func (a *Allowlist) Permits(ip net.IP) bool {
	if len(a.networks) == 0 {
		return true
	}
	for _, network := range a.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// requestIP extracts the originating client IP from r, preferring
// X-Forwarded-For and X-Real-IP over RemoteAddr since scrapers typically
// reach this service through a reverse proxy.
func requestIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

// HTTPMiddleware rejects requests whose client IP isn't permitted with a
// 403, passing everything through when the allowlist is disabled.
func (a *Allowlist) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		ip := requestIP(r)
		if ip == nil || !a.Permits(ip) {
			a.logger.Warn("metrics access denied by IP allowlist", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
