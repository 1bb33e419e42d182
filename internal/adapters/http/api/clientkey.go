package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Prefix lengths client addresses are coarsened to before they are used as
// rate limit keys or stored with a match.
const (
	ipv4PrefixBits = 24
	ipv6PrefixBits = 48
)

const (
	unknownClient   = "unknown"
	forwardedHeader = "X-Forwarded-For"
)

// clientResolver identifies callers. X-Forwarded-For is only read when the
// socket peer is one of the trusted proxies.
type clientResolver struct {
	trusted []netip.Prefix
}

// key returns the caller's coarsened network. Behind trusted proxies it is the
// rightmost forwarded hop that is not itself a trusted proxy.
func (c clientResolver) key(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !c.isTrusted(peer) {
		return coarsen(peer)
	}

	hops := strings.Split(r.Header.Get(forwardedHeader), ",")
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		client = hop
		if !c.isTrusted(hop) {
			break
		}
	}
	return coarsen(client)
}

func (c clientResolver) isTrusted(raw string) bool {
	if len(c.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return false
	}
	addr = addr.Unmap().WithZone("")
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// coarsen truncates an address to its /24 (IPv4) or /48 (IPv6) network.
func coarsen(raw string) string {
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return unknownClient
	}
	addr = addr.Unmap().WithZone("")
	bits := ipv6PrefixBits
	if addr.Is4() {
		bits = ipv4PrefixBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return unknownClient
	}
	return prefix.String()
}
