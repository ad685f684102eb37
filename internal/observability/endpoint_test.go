package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOTLPHTTPPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		suffix   string
		want     string
		wantErr  bool
	}{
		{"no path", "https://collector:4318", "/v1/metrics", "https://collector:4318/v1/metrics", false},
		{"prefix path", "https://example.com/otlp", "/v1/traces", "https://example.com/otlp/v1/traces", false},
		{"trailing slash", "https://example.com/otlp/", "v1/metrics", "https://example.com/otlp/v1/metrics", false},
		{"suffix present", "http://localhost:4318/v1/traces", "/v1/traces", "http://localhost:4318/v1/traces", false},
		{"query kept", "https://example.com/otlp?token=abc", "/v1/traces", "https://example.com/otlp/v1/traces?token=abc", false},
		{"empty", " ", "/v1/metrics", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeOTLPHTTPPath(tt.endpoint, tt.suffix)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGRPCEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw          string
		wantHost     string
		wantInsecure bool
		wantErr      bool
	}{
		{"collector:4317", "collector:4317", true, false},
		{"grpc://collector:4317", "collector:4317", true, false},
		{"http://collector:4317", "collector:4317", true, false},
		{"https://collector:4317", "collector:4317", false, false},
		{"grpcs://collector:4317", "collector:4317", false, false},
		{"ftp://collector:4317", "", false, true},
		{"collector", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		host, insecure, err := parseGRPCEndpoint(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.wantHost, host, tt.raw)
		assert.Equal(t, tt.wantInsecure, insecure, tt.raw)
	}
}
