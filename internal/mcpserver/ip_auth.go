package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ca-srg/yelpmcp/internal/logging"
)

const ipDeniedBody = `{"error": {"code": -32603, "message": "Access denied: IP not authorized"}}`

// IPAuthMiddleware restricts access to a set of addresses and networks
type IPAuthMiddleware struct {
	allowedIPs  []string
	allowedNets []*net.IPNet
	logger      zerolog.Logger
}

// NewIPAuthMiddleware creates a new IP authentication middleware
func NewIPAuthMiddleware(allowedIPs []string) (*IPAuthMiddleware, error) {
	if len(allowedIPs) == 0 {
		return nil, fmt.Errorf("no allowed IPs specified")
	}

	m := &IPAuthMiddleware{
		allowedIPs: allowedIPs,
		logger:     logging.NewLogger("ip-auth"),
	}

	for _, entry := range allowedIPs {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		network, err := ParseCIDROrIP(entry)
		if err != nil {
			return nil, err
		}
		m.allowedNets = append(m.allowedNets, network)
	}
	if len(m.allowedNets) == 0 {
		return nil, fmt.Errorf("no allowed IPs specified")
	}

	m.logger.Info().Int("ranges", len(m.allowedNets)).Msg("IP auth middleware initialized")
	return m, nil
}

// Middleware returns the HTTP middleware function
func (m *IPAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := ExtractClientIP(r)

		if !m.IsIPAllowed(clientIP) {
			m.logger.Warn().
				Str("client_ip", clientIP).
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Str("user_agent", r.Header.Get("User-Agent")).
				Msg("Access denied")
			writeIPDenied(w, m.logger)
			return
		}

		m.logger.Debug().Str("client_ip", clientIP).Str("path", r.URL.Path).Msg("Access granted")

		ctx := context.WithValue(r.Context(), clientIPContextKey, clientIP)
		ctx = context.WithValue(ctx, authMethodContextKey, string(AuthMethodIP))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IsIPAllowed reports whether ipStr falls inside an allowed range
func (m *IPAuthMiddleware) IsIPAllowed(ipStr string) bool {
	if ipStr == "" {
		return false
	}

	clientIP := net.ParseIP(ipStr)
	if clientIP == nil {
		m.logger.Debug().Str("client_ip", ipStr).Msg("Failed to parse client IP")
		return false
	}

	for _, network := range m.allowedNets {
		if network.Contains(clientIP) {
			return true
		}
	}
	return false
}

// GetAllowedIPs returns the configured addresses and ranges
func (m *IPAuthMiddleware) GetAllowedIPs() []string {
	return m.allowedIPs
}

func writeIPDenied(w http.ResponseWriter, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	if _, err := w.Write([]byte(ipDeniedBody)); err != nil {
		logger.Error().Err(err).Msg("Failed to write error response")
	}
}
