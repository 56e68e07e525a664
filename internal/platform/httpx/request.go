package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	sessiondomain "crm-dashboard/backend/internal/session/domain"
)

var errTrailingData = errors.New("unexpected data after JSON body")

const maxUserAgentLen = 512

type clientIPKey struct{}

// TrustedProxies is the set of peers whose X-Forwarded-For and X-Real-IP headers are believed.
// A nil *TrustedProxies trusts nobody.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts CIDRs ("10.0.0.0/8") and single addresses ("192.0.2.10").
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	t := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			t.prefixes = append(t.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		t.prefixes = append(t.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return t, nil
}

func (t *TrustedProxies) trusts(a netip.Addr) bool {
	if t == nil {
		return false
	}
	a = a.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// Resolve returns the client address for r. Forwarding headers count only when the connecting
// peer is trusted; X-Forwarded-For is then walked from the right, skipping trusted hops.
func (t *TrustedProxies) Resolve(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	pa, err := netip.ParseAddr(peer)
	if err != nil || !t.trusts(pa) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hops = append(hops, h)
			}
		}
	}
	if len(hops) > 0 {
		var leftmost netip.Addr
		for i := len(hops) - 1; i >= 0; i-- {
			a, err := netip.ParseAddr(hops[i])
			if err != nil {
				return peer
			}
			if !t.trusts(a) {
				return a.Unmap().String()
			}
			leftmost = a
		}
		return leftmost.Unmap().String()
	}
	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.Unmap().String()
	}
	return peer
}

// WithClientIP records the resolved client address on ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address recorded by WithClientIP, else the connection's remote host.
// It never reads forwarding headers itself.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Meta returns the client description recorded on sessions and audit entries.
func Meta(r *http.Request) sessiondomain.RequestMeta {
	ua := r.UserAgent()
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	return sessiondomain.RequestMeta{UserAgent: ua, IPAddress: ClientIP(r)}
}

// WantsJSON reports whether a rejection should be rendered as JSON rather than a redirect:
// anything under /api/ or anything that asks for JSON.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
