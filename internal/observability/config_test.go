package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/yelpmcp/internal/types"
)

func TestLoadConfigDisabledFillsDefaults(t *testing.T) {
	cfg, err := LoadConfig(&types.Config{})
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, defaultServiceName, cfg.ServiceName)
	assert.Equal(t, protocolHTTPProtobuf, cfg.ExporterProtocol)
	assert.Equal(t, "always_on", cfg.TracesSampler)
	assert.Equal(t, defaultMetricInterval, cfg.MetricExportInterval)
	assert.Equal(t, defaultServiceName, cfg.ResourceAttributes[resourceServiceNameKey])
}

func TestLoadConfigParsesResourceAttributes(t *testing.T) {
	cfg, err := LoadConfig(&types.Config{
		OTelServiceName:        "yelp-prod",
		OTelResourceAttributes: "deployment.environment=prod, team = search ,",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"deployment.environment": "prod",
		"team":                   "search",
		"service.name":           "yelp-prod",
	}, cfg.ResourceAttributes)

	_, err = LoadConfig(&types.Config{OTelResourceAttributes: "novalue"})
	assert.Error(t, err)

	_, err = LoadConfig(&types.Config{OTelResourceAttributes: "=x"})
	assert.Error(t, err)
}

func TestValidateEnabledConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"http ok", Config{Enabled: true, ExporterEndpoint: "http://collector:4318"}, false},
		{"grpc host port", Config{Enabled: true, ExporterProtocol: "grpc", ExporterEndpoint: "collector:4317"}, false},
		{"grpc with scheme", Config{Enabled: true, ExporterProtocol: "GRPC", ExporterEndpoint: "https://collector:4317"}, false},
		{"missing endpoint", Config{Enabled: true}, true},
		{"http without scheme", Config{Enabled: true, ExporterEndpoint: "collector:4318"}, true},
		{"grpc without port", Config{Enabled: true, ExporterProtocol: "grpc", ExporterEndpoint: "collector"}, true},
		{"unknown protocol", Config{Enabled: true, ExporterProtocol: "thrift", ExporterEndpoint: "http://c"}, true},
		{"ratio out of range", Config{Enabled: true, ExporterEndpoint: "http://c:4318", TracesSampler: "traceidratio", TracesSamplerArg: 1.5}, true},
		{"negative arg", Config{Enabled: true, ExporterEndpoint: "http://c:4318", TracesSamplerArg: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateKeepsExplicitInterval(t *testing.T) {
	cfg := Config{MetricExportInterval: 5 * time.Second}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.MetricExportInterval)
}

func TestLoadConfigNil(t *testing.T) {
	_, err := LoadConfig(nil)
	assert.Error(t, err)
}
