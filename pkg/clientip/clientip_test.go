package clientip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/orgkit/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"remote addr without port", "192.0.2.1", nil, "192.0.2.1"},
		{"ipv6 remote", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"invalid remote", "not-an-ip", nil, ""},
		{"cloudflare wins", "10.0.0.1:1", map[string]string{"CF-Connecting-IP": "198.51.100.7", "X-Forwarded-For": "203.0.113.5"}, "198.51.100.7"},
		{"first forwarded entry", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"skips garbage forwarded entries", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "unknown, 203.0.113.6"}, "203.0.113.6"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "203.0.113.9"},
		{"garbage headers fall back", "192.0.2.1:1", map[string]string{"X-Forwarded-For": "nope", "X-Real-IP": "<script>"}, "192.0.2.1"},
		{"ipv6 normalized", "10.0.0.1:1", map[string]string{"X-Real-IP": "2001:DB8:0:0::1"}, "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(r))
		})
	}
}

func TestResolver_NoTrustedHeaders(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1"
	r.Header.Set("X-Forwarded-For", "203.0.113.5")

	assert.Equal(t, "192.0.2.1", clientip.New().IP(r))
	assert.Equal(t, "203.0.113.5", clientip.New(" x-forwarded-for ", "").IP(r))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	h := clientip.Middleware(clientip.New("X-Real-IP"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = clientip.FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "203.0.113.9", got)
	assert.Empty(t, clientip.FromContext(r.Context()))
}
