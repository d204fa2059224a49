// Package realip derives the client address for logging and rate limiting.
package realip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies resolves client IPs, honoring forwarding headers only from
// configured proxy ranges.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// NewTrustedProxies parses CIDRs or bare IPs. Entries that parse as neither
// are skipped.
func NewTrustedProxies(entries []string) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if p, err := netip.ParsePrefix(e); err == nil {
			tp.prefixes = append(tp.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			tp.prefixes = append(tp.prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
		}
	}
	return tp
}

// Len returns the number of parsed ranges.
func (tp *TrustedProxies) Len() int { return len(tp.prefixes) }

// IsTrusted reports whether addr falls in a trusted range.
func (tp *TrustedProxies) IsTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetClientIP returns the peer address, or for a trusted peer the right-most
// X-Forwarded-For hop that is not itself a trusted proxy. X-Real-IP is used
// when X-Forwarded-For is absent.
func (tp *TrustedProxies) GetClientIP(r *http.Request) (netip.Addr, bool) {
	direct, ok := parseRemoteAddr(r.RemoteAddr)
	if !ok || !tp.IsTrusted(direct) {
		return direct, ok
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			a, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !tp.IsTrusted(a) {
				return a.Unmap(), true
			}
		}
		return direct, true
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if a, err := netip.ParseAddr(xri); err == nil {
			return a.Unmap(), true
		}
	}
	return direct, true
}

// GetClientIPString returns the client IP, or "unknown".
func (tp *TrustedProxies) GetClientIPString(r *http.Request) string {
	if tp == nil {
		if a, ok := parseRemoteAddr(r.RemoteAddr); ok {
			return a.String()
		}
		return "unknown"
	}
	a, ok := tp.GetClientIP(r)
	if !ok {
		return "unknown"
	}
	return a.String()
}

func parseRemoteAddr(addr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
