// Package security resolves the effective client address of a request,
// honouring forwarding headers only when the direct peer is a trusted proxy.
// Rate limiting keys its per-client buckets on the result.
package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// defaultHeaderPriority is the ordered list of header keys inspected when the
// caller does not provide one.
var defaultHeaderPriority = []string{"x-real-ip", "x-forwarded-for"}

// ClientIP resolves client addresses for gRPC and HTTP requests.
type ClientIP struct {
	trusted  []netip.Prefix
	priority []string
}

// NewClientIP parses trustedProxies as CIDRs or bare addresses. An empty
// headerPriority selects X-Real-IP then X-Forwarded-For.
func NewClientIP(trustedProxies []string, headerPriority []string) (*ClientIP, error) {
	c := &ClientIP{priority: defaultHeaderPriority}
	if len(headerPriority) > 0 {
		c.priority = make([]string, len(headerPriority))
		for i, h := range headerPriority {
			c.priority[i] = strings.ToLower(h)
		}
	}
	for _, s := range trustedProxies {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		p, err := parsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("security: trusted proxy %q: %w", s, err)
		}
		c.trusted = append(c.trusted, p)
	}
	return c, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		return p.Masked(), err
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

// FromGRPC returns the client address of the gRPC call carried by ctx.
func (c *ClientIP) FromGRPC(ctx context.Context) (netip.Addr, bool) {
	peerAddr, ok := peerAddrFromContext(ctx)
	if !ok {
		return netip.Addr{}, false
	}
	if c.isTrustedProxy(peerAddr) {
		md, _ := metadata.FromIncomingContext(ctx)
		if addr, found := addrFromHeaders(md.Get, c.priority); found {
			return addr, true
		}
	}
	return peerAddr, true
}

// FromHTTP returns the client address of r.
func (c *ClientIP) FromHTTP(r *http.Request) (netip.Addr, bool) {
	peerAddr, ok := parseHostPort(r.RemoteAddr)
	if !ok {
		return netip.Addr{}, false
	}
	if c.isTrustedProxy(peerAddr) {
		if addr, found := addrFromHeaders(r.Header.Values, c.priority); found {
			return addr, true
		}
	}
	return peerAddr, true
}

func peerAddrFromContext(ctx context.Context) (netip.Addr, bool) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return netip.Addr{}, false
	}
	return addrFromNetAddr(p.Addr)
}

func addrFromNetAddr(addr net.Addr) (netip.Addr, bool) {
	return parseHostPort(addr.String())
}

// parseHostPort parses an address with or without a port.
func parseHostPort(s string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func (c *ClientIP) isTrustedProxy(addr netip.Addr) bool {
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// addrFromHeaders walks the header keys in priority order and returns the
// first valid IP address found. For X-Forwarded-For the left-most entry is
// the client.
func addrFromHeaders(get func(string) []string, priority []string) (netip.Addr, bool) {
	for _, key := range priority {
		for _, v := range get(key) {
			for part := range strings.SplitSeq(v, ",") {
				trimmed := strings.TrimSpace(part)
				if trimmed == "" {
					continue
				}
				if ip, err := netip.ParseAddr(trimmed); err == nil {
					return ip.Unmap(), true
				}
			}
		}
	}
	return netip.Addr{}, false
}
