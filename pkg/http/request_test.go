package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/palisadehq/palisade/pkg/http"
	"github.com/stretchr/testify/assert"
)

// The extracted IP keys the pre-auth admission limit on POST /attempts, so a
// spoofable extraction would let an attacker dodge throttling (or exhaust
// someone else's budget). Forwarding headers must only be honored when the
// peer is a configured proxy.

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/security/attempts", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	// Direct caller tries to spoof the admission key
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{
			"10.0.0.0/8",
			"172.16.0.0/12",
			"127.0.0.1/32",
		},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip, "non-proxy peers must be keyed by RemoteAddr")
}

func TestExtractClientIP_TrustedProxy_UsesXForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/security/attempts", nil)
	req.RemoteAddr = "10.0.0.5:54321" // gateway in front of the service

	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.5")
	req.Header.Set("X-Real-IP", "203.0.113.42")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{
			"10.0.0.0/8",
			"127.0.0.1/32",
		},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.42", ip, "gateway-forwarded caller IP should key the limit")
}

func TestExtractClientIP_IPv6_TrustedProxy(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/security/attempts", nil)
	req.RemoteAddr = "[::1]:54321"

	req.Header.Set("X-Forwarded-For", "2001:db8::1")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{
			"::1/128",
			"2001:db8::/32",
		},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "2001:db8::1", ip)
}

func TestExtractClientIP_NoConfig_DefaultsSecurely(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/security/lockouts/user%40example.com", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	ip := pkghttp.ExtractClientIP(req, nil)

	assert.Equal(t, "203.0.113.10", ip, "nil config must not trust forwarding headers")
}

func TestExtractClientIP_EmptyConfig_DefaultsSecurely(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/security/attempts", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip, "empty proxy list must not trust forwarding headers")
}

func TestExtractClientIP_InvalidCIDR_IgnoresProxyCheck(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/security/attempts", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{
			"invalid-cidr-range",
			"also-invalid",
		},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip, "unparseable CIDR ranges must fail closed to RemoteAddr")
}

func TestExtractClientIP_MultipleIPs_UsesFirst(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/security/attempts", nil)
	req.RemoteAddr = "10.0.0.5:54321"

	// Caller, intermediate proxy, gateway
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 203.0.113.43, 10.0.0.5")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.42", ip, "the originating caller keys the limit, not intermediate hops")
}

func TestExtractClientIP_RemoteAddrWithPort_StripPort(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/security/attempts", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip, "admission keys must not vary by ephemeral source port")
}

func TestExtractClientIP_LocalhostSpoof_Prevention(t *testing.T) {
	// An attacker claiming to be localhost must not get a fresh admission
	// budget for attempt submissions.
	req := httptest.NewRequest("POST", "/v1/security/attempts", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	req.Header.Set("X-Forwarded-For", "127.0.0.1, 203.0.113.10")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip)
}
