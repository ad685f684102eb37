package mcpserver

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const maxAttributeLength = 256

var (
	mcpTracer = otel.Tracer("yelpmcp/mcpserver")

	mcpMetricsOnce      sync.Once
	mcpRequestCounter   metric.Int64Counter
	mcpErrorCounter     metric.Int64Counter
	mcpLatencyHistogram metric.Float64Histogram
)

func initMCPMetrics() {
	mcpMetricsOnce.Do(func() {
		meter := otel.Meter("yelpmcp/mcpserver")

		var err error
		mcpRequestCounter, err = meter.Int64Counter(
			"yelpmcp.mcp.requests.total",
			metric.WithDescription("Total MCP tool calls"),
		)
		if err != nil {
			log.Warn().Err(err).Msg("observability: failed to create MCP request counter")
		}

		mcpErrorCounter, err = meter.Int64Counter(
			"yelpmcp.mcp.errors.total",
			metric.WithDescription("Total MCP tool calls that ended in an error"),
		)
		if err != nil {
			log.Warn().Err(err).Msg("observability: failed to create MCP error counter")
		}

		mcpLatencyHistogram, err = meter.Float64Histogram(
			"yelpmcp.mcp.response_time",
			metric.WithDescription("MCP tool response time (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			log.Warn().Err(err).Msg("observability: failed to create MCP latency histogram")
		}
	})
}

func recordMCPMetrics(ctx context.Context, attrs []attribute.KeyValue, duration time.Duration, errType string) {
	initMCPMetrics()
	if mcpRequestCounter != nil {
		mcpRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if mcpLatencyHistogram != nil {
		mcpLatencyHistogram.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	}
	if errType != "" && mcpErrorCounter != nil {
		errAttrs := make([]attribute.KeyValue, len(attrs)+1)
		copy(errAttrs, attrs)
		errAttrs[len(attrs)] = attribute.String("error.type", errType)
		mcpErrorCounter.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	}
}

// truncateForAttribute caps s at maxAttributeLength bytes without splitting a
// UTF-8 sequence.
func truncateForAttribute(s string) string {
	if len(s) <= maxAttributeLength {
		return s
	}
	cut := maxAttributeLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
