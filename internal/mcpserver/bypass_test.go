package mcpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBypassChecker(t *testing.T) {
	tests := []struct {
		name       string
		ranges     []string
		wantErr    bool
		wantRanges []string
	}{
		{name: "cidr", ranges: []string{"10.0.0.0/24"}, wantRanges: []string{"10.0.0.0/24"}},
		{name: "single ip", ranges: []string{"10.0.0.1"}, wantRanges: []string{"10.0.0.1/32"}},
		{name: "ipv6", ranges: []string{"2001:db8::1"}, wantRanges: []string{"2001:db8::1/128"}},
		{name: "duplicates collapse", ranges: []string{"10.0.0.1", "10.0.0.1/32"}, wantRanges: []string{"10.0.0.1/32"}},
		{name: "empty", ranges: nil, wantRanges: nil},
		{name: "invalid prefix", ranges: []string{"10.0.0.0/33"}, wantErr: true},
		{name: "invalid ip", ranges: []string{"not-an-ip"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, err := NewBypassChecker(tt.ranges)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRanges, checker.Ranges())
		})
	}
}

func TestBypassCheckerMatch(t *testing.T) {
	checker, err := NewBypassChecker([]string{"10.0.0.0/24", "2001:db8::/32"})
	require.NoError(t, err)

	matched, ok := checker.Match("10.0.0.42")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.0/24", matched)

	_, ok = checker.Match("2001:db8::5")
	assert.True(t, ok)

	for _, ip := range []string{"10.0.1.1", "", "garbage"} {
		_, ok := checker.Match(ip)
		assert.False(t, ok, ip)
	}
}

func TestBypassAuditOmitsSensitiveHeaders(t *testing.T) {
	checker, err := NewBypassChecker([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	var buf bytes.Buffer
	checker.audit = zerolog.New(&buf)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Rapidapi-Key", "secret")
	req.Header.Set("User-Agent", "healthcheck/1.0")
	req.Header.Set("X-Trace", "abc")

	checker.logAccess(req, "10.1.2.3", "10.0.0.0/8")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "10.1.2.3", entry["ip"])
	assert.Equal(t, "10.0.0.0/8", entry["matched_range"])
	assert.Equal(t, "healthcheck/1.0", entry["user_agent"])

	headers := entry["headers"].(map[string]any)
	assert.Equal(t, "abc", headers["X-Trace"])
	assert.NotContains(t, headers, "Authorization")
	assert.NotContains(t, headers, "X-Rapidapi-Key")
}
