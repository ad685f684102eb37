package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"

	"github.com/ca-srg/yelpmcp/internal/logging"
)

const authCookieName = "mcp_auth_token"

// OIDCAuthMiddleware verifies bearer ID tokens issued by an OpenID provider
type OIDCAuthMiddleware struct {
	verifier   *oidc.IDTokenVerifier
	tokenStore *TokenStore
	issuer     string
	logger     zerolog.Logger
}

// OIDCConfig contains configuration for OIDC authentication
type OIDCConfig struct {
	Issuer   string // Expected "iss" claim, also used for discovery
	ClientID string // Expected audience
	JWKSURL  string // Skips discovery when set

	// KeySet overrides both discovery and JWKSURL.
	KeySet oidc.KeySet
}

// TokenStore caches verified tokens until they expire
type TokenStore struct {
	tokens map[string]*TokenInfo
	mutex  sync.RWMutex
}

// TokenInfo contains the verified identity of a caller
type TokenInfo struct {
	Subject   string
	Email     string
	Claims    map[string]interface{}
	ExpiresAt time.Time
}

// NewTokenStore creates a new token store
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]*TokenInfo)}
}

func (s *TokenStore) get(token string, now time.Time) (*TokenInfo, bool) {
	s.mutex.RLock()
	info, ok := s.tokens[token]
	s.mutex.RUnlock()
	if !ok {
		return nil, false
	}
	if now.Before(info.ExpiresAt) {
		return info, true
	}

	s.mutex.Lock()
	delete(s.tokens, token)
	s.mutex.Unlock()
	return nil, false
}

// put caches info and drops every entry that has expired by now, so tokens
// that are never presented again do not accumulate.
func (s *TokenStore) put(token string, info *TokenInfo, now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for cached, existing := range s.tokens {
		if !now.Before(existing.ExpiresAt) {
			delete(s.tokens, cached)
		}
	}
	if now.Before(info.ExpiresAt) {
		s.tokens[token] = info
	}
}

// Len returns the number of cached tokens
func (s *TokenStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.tokens)
}

// NewOIDCAuthMiddleware creates a new OIDC authentication middleware. Without
// a JWKS URL or key set the provider's discovery document is fetched.
func NewOIDCAuthMiddleware(ctx context.Context, config *OIDCConfig) (*OIDCAuthMiddleware, error) {
	if config == nil {
		return nil, fmt.Errorf("OIDC configuration is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if config.Issuer == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}

	logger := logging.NewLogger("oidc-auth")
	verifierConfig := &oidc.Config{ClientID: config.ClientID}

	var verifier *oidc.IDTokenVerifier
	switch {
	case config.KeySet != nil:
		verifier = oidc.NewVerifier(config.Issuer, config.KeySet, verifierConfig)
	case config.JWKSURL != "":
		keySet := oidc.NewRemoteKeySet(ctx, config.JWKSURL)
		verifier = oidc.NewVerifier(config.Issuer, keySet, verifierConfig)
		logger.Info().Str("jwks_url", config.JWKSURL).Msg("Using custom JWKS endpoint")
	default:
		provider, err := oidc.NewProvider(ctx, config.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		verifier = provider.Verifier(verifierConfig)
	}

	logger.Info().Str("issuer", config.Issuer).Msg("OIDC auth middleware initialized")

	return &OIDCAuthMiddleware{
		verifier:   verifier,
		tokenStore: NewTokenStore(),
		issuer:     config.Issuer,
		logger:     logger,
	}, nil
}

// Middleware returns the HTTP middleware function
func (m *OIDCAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenInfo, err := m.authenticate(r)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			m.sendAuthenticationRequired(w)
			return
		}

		m.logger.Debug().Str("subject", tokenInfo.Subject).Str("email", tokenInfo.Email).Msg("Authentication successful")
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), tokenInfo, ExtractClientIP(r))))
	})
}

func (m *OIDCAuthMiddleware) authenticate(r *http.Request) (*TokenInfo, error) {
	token := extractToken(r)
	if token == "" {
		return nil, fmt.Errorf("no token provided")
	}
	return m.validateToken(r.Context(), token)
}

func withUser(ctx context.Context, info *TokenInfo, clientIP string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, info)
	ctx = context.WithValue(ctx, clientIPContextKey, clientIP)
	return context.WithValue(ctx, authMethodContextKey, string(AuthMethodOIDC))
}

// extractToken reads the bearer token from the Authorization header, the
// token query parameter or the auth cookie, in that order.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token)
		}
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}

	return ""
}

// validateToken verifies signature, issuer, audience and expiry
func (m *OIDCAuthMiddleware) validateToken(ctx context.Context, token string) (*TokenInfo, error) {
	if info, ok := m.tokenStore.get(token, time.Now()); ok {
		return info, nil
	}

	idToken, err := m.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}

	info := &TokenInfo{
		Subject:   idToken.Subject,
		Claims:    claims,
		ExpiresAt: idToken.Expiry,
	}
	if email, ok := claims["email"].(string); ok {
		info.Email = email
	}

	m.tokenStore.put(token, info, time.Now())
	return info, nil
}

// sendAuthenticationRequired writes a JSON-RPC style 401
func (m *OIDCAuthMiddleware) sendAuthenticationRequired(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q`, m.issuer))
	w.WriteHeader(http.StatusUnauthorized)

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    -32001,
			"message": "Authentication required",
			"data": map[string]interface{}{
				"issuer": m.issuer,
			},
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// TokenStore returns the verified token cache
func (m *OIDCAuthMiddleware) TokenStore() *TokenStore {
	return m.tokenStore
}
