package mcpserver

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ca-srg/yelpmcp/internal/logging"
)

// authMethodBypass marks requests admitted by a trusted range.
const authMethodBypass = "bypass"

var sensitiveHeaders = map[string]struct{}{
	"Authorization":  {},
	"Cookie":         {},
	"X-Api-Key":      {},
	"X-Auth-Token":   {},
	"X-Rapidapi-Key": {},
}

// BypassChecker admits clients from trusted networks without authentication.
// Every decision for a matching address is written to the audit log.
type BypassChecker struct {
	mu     sync.RWMutex
	ranges []string
	nets   []*net.IPNet
	audit  zerolog.Logger
}

// NewBypassChecker parses ranges. Bare addresses become /32 or /128.
func NewBypassChecker(ranges []string) (*BypassChecker, error) {
	c := &BypassChecker{audit: logging.NewLogger("bypass-audit")}
	for _, r := range ranges {
		if err := c.AddRange(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddRange trusts one more address or CIDR.
func (c *BypassChecker) AddRange(cidr string) error {
	network, err := ParseCIDROrIP(cidr)
	if err != nil {
		return fmt.Errorf("invalid bypass range %q (use 10.0.0.0/24 or 10.0.0.1): %w", cidr, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.ranges {
		if existing == network.String() {
			return nil
		}
	}
	c.ranges = append(c.ranges, network.String())
	c.nets = append(c.nets, network)
	return nil
}

// Match returns the trusted range containing ip.
func (c *BypassChecker) Match(ip string) (string, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, network := range c.nets {
		if network.Contains(parsed) {
			return c.ranges[i], true
		}
	}
	return "", false
}

// Ranges returns the normalized trusted ranges.
func (c *BypassChecker) Ranges() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.ranges...)
}

func (c *BypassChecker) logAccess(r *http.Request, clientIP, matched string) {
	headers := zerolog.Dict()
	for name := range r.Header {
		if _, secret := sensitiveHeaders[http.CanonicalHeaderKey(name)]; secret {
			continue
		}
		headers.Str(name, r.Header.Get(name))
	}

	c.audit.Info().
		Str("ip", clientIP).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("matched_range", matched).
		Str("user_agent", r.UserAgent()).
		Dict("headers", headers).
		Msg("Authentication bypassed for trusted range")
}
