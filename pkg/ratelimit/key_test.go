package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/orgkit/pkg/clientip"
	"github.com/dmitrymomot/orgkit/pkg/ratelimit"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"remote addr without port", "192.0.2.1", nil, "192.0.2.1"},
		{"forwarded for", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"garbage header ignored", "192.0.2.1:1", map[string]string{"X-Forwarded-For": "nope"}, "192.0.2.1"},
		{"ipv6", "[2001:db8::1]:443", nil, "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ratelimit.ClientIP(r))
		})
	}
}

func TestClientIP_PrefersContext(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1"
	r = r.WithContext(clientip.WithContext(r.Context(), "198.51.100.20"))

	assert.Equal(t, "198.51.100.20", ratelimit.ClientIP(r))
}

func TestComposite(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1"

	key := ratelimit.Composite(ratelimit.Static("login"), ratelimit.ClientIP)(r)
	assert.Equal(t, "login:192.0.2.1", key)

	empty := ratelimit.Composite(ratelimit.Static(""))(r)
	assert.Empty(t, empty)

	long := ratelimit.Composite(ratelimit.Static(strings.Repeat("x", 80)))(r)
	assert.Len(t, long, 32)
}
