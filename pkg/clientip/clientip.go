package clientip

import (
	"net"
	"net/http"
	"strings"
)

// DefaultHeaders are consulted in order before falling back to RemoteAddr.
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Resolver extracts the client address from a request.
type Resolver struct {
	headers []string
}

// New returns a Resolver trusting headers in the given order.
// With no headers only RemoteAddr is used.
func New(headers ...string) Resolver {
	h := make([]string, 0, len(headers))
	for _, name := range headers {
		if name = strings.TrimSpace(name); name != "" {
			h = append(h, http.CanonicalHeaderKey(name))
		}
	}
	return Resolver{headers: h}
}

// IP returns the normalized client address, or "" when none is valid.
// Comma separated headers such as X-Forwarded-For yield their first valid entry.
func (res Resolver) IP(r *http.Request) string {
	for _, name := range res.headers {
		v := r.Header.Get(name)
		if v == "" {
			continue
		}
		for part := range strings.SplitSeq(v, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// GetIP resolves the client address using DefaultHeaders.
func GetIP(r *http.Request) string {
	return New(DefaultHeaders...).IP(r)
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
