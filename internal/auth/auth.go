// Package auth provides the OAuth strategy that turns bearer tokens into
// caller credentials. Tokens are either verified locally as HMAC-signed JWTs
// or handed to a remote verification endpoint.
package auth

import (
	"fmt"
	"strings"

	"profile_server/platform/config"
	"profile_server/platform/httpkit"
	"profile_server/platform/logger"
)

// NewVerifier picks the verifier matching the configuration. A remote
// verification URL takes precedence over a local JWT secret.
func NewVerifier(cfg config.OAuthConfig, log *logger.Logger) (httpkit.TokenVerifier, error) {
	switch {
	case cfg.GetOAuthVerifyURL() != "":
		return NewRemoteVerifier(cfg.GetOAuthVerifyURL(), cfg.GetOAuthVerifyTimeout(), log), nil
	case cfg.GetOAuthJWTSecret() != "":
		return NewJWTVerifier(cfg.GetOAuthJWTSecret()), nil
	default:
		return nil, fmt.Errorf("no oauth verifier configured")
	}
}

// parseScope accepts the space separated string form and the array form.
func parseScope(raw any) []string {
	switch v := raw.(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
