package mcpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ca-srg/yelpmcp/internal/logging"
)

// AuthMethod represents the authentication method
type AuthMethod string

const (
	// AuthMethodNone disables authentication
	AuthMethodNone AuthMethod = "none"
	// AuthMethodIP uses IP address based authentication
	AuthMethodIP AuthMethod = "ip"
	// AuthMethodOIDC uses OpenID Connect bearer tokens
	AuthMethodOIDC AuthMethod = "oidc"
	// AuthMethodBoth requires both IP and OIDC authentication
	AuthMethodBoth AuthMethod = "both"
	// AuthMethodEither allows either IP or OIDC authentication
	AuthMethodEither AuthMethod = "either"
)

// ParseAuthMethod converts a configured value into an AuthMethod
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch m := AuthMethod(s); m {
	case AuthMethodNone, AuthMethodIP, AuthMethodOIDC, AuthMethodBoth, AuthMethodEither:
		return m, nil
	default:
		return "", fmt.Errorf("unknown auth method %q", s)
	}
}

func (m AuthMethod) usesIP() bool {
	return m == AuthMethodIP || m == AuthMethodBoth || m == AuthMethodEither
}

func (m AuthMethod) usesOIDC() bool {
	return m == AuthMethodOIDC || m == AuthMethodBoth || m == AuthMethodEither
}

// UnifiedAuthMiddleware combines IP and OIDC authentication
type UnifiedAuthMiddleware struct {
	ipAuth     *IPAuthMiddleware
	oidcAuth   *OIDCAuthMiddleware
	bypass     *BypassChecker
	authMethod AuthMethod
	logger     zerolog.Logger
}

// UnifiedAuthConfig contains configuration for unified authentication
type UnifiedAuthConfig struct {
	AuthMethod AuthMethod
	AllowedIPs []string
	OIDCConfig *OIDCConfig

	// BypassIPs skip authentication entirely and are audit logged.
	BypassIPs []string
}

// NewUnifiedAuthMiddleware creates a new unified authentication middleware
func NewUnifiedAuthMiddleware(ctx context.Context, config *UnifiedAuthConfig) (*UnifiedAuthMiddleware, error) {
	if config == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if _, err := ParseAuthMethod(string(config.AuthMethod)); err != nil {
		return nil, err
	}

	middleware := &UnifiedAuthMiddleware{
		authMethod: config.AuthMethod,
		logger:     logging.NewLogger("auth"),
	}

	if config.AuthMethod.usesIP() {
		ipAuth, err := NewIPAuthMiddleware(config.AllowedIPs)
		if err != nil {
			return nil, fmt.Errorf("failed to create IP auth middleware: %w", err)
		}
		middleware.ipAuth = ipAuth
	}

	if config.AuthMethod.usesOIDC() {
		if config.OIDCConfig == nil {
			return nil, fmt.Errorf("OIDC configuration is required for method %s", config.AuthMethod)
		}
		oidcAuth, err := NewOIDCAuthMiddleware(ctx, config.OIDCConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC auth middleware: %w", err)
		}
		middleware.oidcAuth = oidcAuth
	}

	if len(config.BypassIPs) > 0 {
		bypass, err := NewBypassChecker(config.BypassIPs)
		if err != nil {
			return nil, err
		}
		middleware.bypass = bypass
	}

	middleware.logger.Info().
		Str("method", string(config.AuthMethod)).
		Int("bypass_ranges", len(config.BypassIPs)).
		Msg("Unified auth middleware initialized")
	return middleware, nil
}

// Middleware returns the HTTP middleware function
func (m *UnifiedAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.bypass != nil && m.authMethod != AuthMethodNone {
			clientIP := ExtractClientIP(r)
			if matched, ok := m.bypass.Match(clientIP); ok {
				m.bypass.logAccess(r, clientIP, matched)
				ctx := context.WithValue(r.Context(), clientIPContextKey, clientIP)
				ctx = context.WithValue(ctx, authMethodContextKey, authMethodBypass)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		switch m.authMethod {
		case AuthMethodIP:
			m.ipAuth.Middleware(next).ServeHTTP(w, r)

		case AuthMethodOIDC:
			m.oidcAuth.Middleware(next).ServeHTTP(w, r)

		case AuthMethodBoth:
			m.ipAuth.Middleware(m.oidcAuth.Middleware(next)).ServeHTTP(w, r)

		case AuthMethodEither:
			m.handleEitherAuth(next, w, r)

		default:
			ctx := context.WithValue(r.Context(), authMethodContextKey, string(AuthMethodNone))
			ctx = context.WithValue(ctx, clientIPContextKey, ExtractClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

// handleEitherAuth accepts an allowed address first and falls back to a token
func (m *UnifiedAuthMiddleware) handleEitherAuth(next http.Handler, w http.ResponseWriter, r *http.Request) {
	clientIP := ExtractClientIP(r)
	if m.ipAuth.IsIPAllowed(clientIP) {
		m.logger.Debug().Str("client_ip", clientIP).Msg("Access granted via IP authentication")
		ctx := context.WithValue(r.Context(), clientIPContextKey, clientIP)
		ctx = context.WithValue(ctx, authMethodContextKey, string(AuthMethodIP))
		next.ServeHTTP(w, r.WithContext(ctx))
		return
	}

	tokenInfo, err := m.oidcAuth.authenticate(r)
	if err == nil {
		m.logger.Debug().Str("subject", tokenInfo.Subject).Msg("Access granted via OIDC authentication")
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), tokenInfo, clientIP)))
		return
	}

	m.logger.Warn().Err(err).Str("client_ip", clientIP).Msg("Access denied: neither IP nor OIDC authentication succeeded")
	m.oidcAuth.sendAuthenticationRequired(w)
}

// GetAuthMethod returns the current authentication method
func (m *UnifiedAuthMiddleware) GetAuthMethod() AuthMethod {
	return m.authMethod
}

// GetIPAuthMiddleware returns the IP authentication middleware
func (m *UnifiedAuthMiddleware) GetIPAuthMiddleware() *IPAuthMiddleware {
	return m.ipAuth
}

// GetBypassChecker returns the trusted range checker, nil when none is configured
func (m *UnifiedAuthMiddleware) GetBypassChecker() *BypassChecker {
	return m.bypass
}

// GetOIDCAuthMiddleware returns the OIDC authentication middleware
func (m *UnifiedAuthMiddleware) GetOIDCAuthMiddleware() *OIDCAuthMiddleware {
	return m.oidcAuth
}
