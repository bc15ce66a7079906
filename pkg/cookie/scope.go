package cookie

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ParentDomain resolves the shared parent domain for host.
//
// When parents is non-empty only those domains are recognized; a host that is
// one of them or a subdomain of one resolves to it. With no configured parents
// the registrable domain (eTLD+1) is used, but only for hosts that actually
// sit below it. Loopback names, IP addresses and single-label hosts never
// resolve, so local development stays host-only.
func ParentDomain(host string, parents []string) (string, bool) {
	host = strings.ToLower(strings.TrimSuffix(stripPort(host), "."))
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return "", false
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return "", false
	}

	if len(parents) > 0 {
		for _, p := range parents {
			p = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p), "."))
			if p == "" {
				continue
			}
			if host == p || strings.HasSuffix(host, "."+p) {
				return p, true
			}
		}
		return "", false
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || etld1 == host {
		return "", false
	}
	return etld1, true
}

// ScopeFor returns the cookie attributes every application must use for the
// shared cookie: parent-domain scope when recognized, SameSite=None with
// Secure over HTTPS and SameSite=Lax otherwise.
func ScopeFor(host string, https bool, parents []string) []Option {
	opts := make([]Option, 0, 3)
	if domain, ok := ParentDomain(host, parents); ok {
		opts = append(opts, WithDomain(domain))
	}
	if https {
		opts = append(opts, WithSecure(true), WithSameSite(http.SameSiteNoneMode))
	} else {
		opts = append(opts, WithSecure(false), WithSameSite(http.SameSiteLaxMode))
	}
	return opts
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
