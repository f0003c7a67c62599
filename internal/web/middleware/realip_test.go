package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// realIPProbe runs one request through TrustedRealIP and returns the
// RemoteAddr the inner handler saw.
func realIPProbe(trusted []string, remoteAddr string, headers map[string]string) string {
	var seen string
	handler := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return seen
}

func TestTrustedRealIP(t *testing.T) {
	trusted := []string{"10.0.0.0/8", "192.168.1.1"}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			"trusted proxy with X-Real-IP",
			"10.1.2.3:4711",
			map[string]string{"X-Real-IP": "203.0.113.9"},
			"203.0.113.9",
		},
		{
			"trusted proxy with X-Forwarded-For chain",
			"10.1.2.3:4711",
			map[string]string{"X-Forwarded-For": "203.0.113.9, 10.1.2.3"},
			"203.0.113.9",
		},
		{
			"X-Real-IP wins over X-Forwarded-For",
			"10.1.2.3:4711",
			map[string]string{"X-Real-IP": "203.0.113.9", "X-Forwarded-For": "198.51.100.7"},
			"203.0.113.9",
		},
		{
			"bare IP in trusted list",
			"192.168.1.1:555",
			map[string]string{"X-Real-IP": "203.0.113.9"},
			"203.0.113.9",
		},
		{
			"untrusted client cannot spoof",
			"198.51.100.7:4711",
			map[string]string{"X-Real-IP": "203.0.113.9"},
			"198.51.100.7:4711",
		},
		{
			"trusted proxy without headers",
			"10.1.2.3:4711",
			nil,
			"10.1.2.3:4711",
		},
		{
			"garbage header ignored",
			"10.1.2.3:4711",
			map[string]string{"X-Real-IP": "not-an-ip"},
			"10.1.2.3:4711",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := realIPProbe(trusted, tt.remoteAddr, tt.headers)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrustedRealIP_NoProxies(t *testing.T) {
	got := realIPProbe(nil, "203.0.113.9:4711", map[string]string{"X-Real-IP": "10.0.0.1"})
	if got != "203.0.113.9:4711" {
		t.Errorf("RemoteAddr = %q, want original", got)
	}
}

func TestTrustedRealIP_InvalidCIDRSkipped(t *testing.T) {
	// A malformed entry must not break the valid ones
	trusted := []string{"not-a-cidr", "10.0.0.0/8"}
	got := realIPProbe(trusted, "10.1.2.3:4711", map[string]string{"X-Real-IP": "203.0.113.9"})
	if got != "203.0.113.9" {
		t.Errorf("RemoteAddr = %q, want 203.0.113.9", got)
	}
}
