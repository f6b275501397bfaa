// Package httpkit provides HTTP utilities including credential abstraction.
package httpkit

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Credentials is what the OAuth strategy learned about the caller.
// It is read-only for handlers and lives for one request.
type Credentials struct {
	// User is the opaque, stable identifier of the caller.
	User string
	// Scope is the set of granted scope tokens. May be empty.
	Scope []string
}

// HasScope reports whether the exact token was granted.
func (c Credentials) HasScope(scope string) bool {
	for _, s := range c.Scope {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenVerifier turns a raw bearer token into credentials.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Credentials, error)
}

// GetCredentials extracts the credentials stored by OAuthRequired.
func GetCredentials(c *gin.Context) (Credentials, bool) {
	raw, ok := c.Get(ContextCredentialsKey)
	if !ok {
		return Credentials{}, false
	}
	creds, ok := raw.(Credentials)
	if !ok || creds.User == "" {
		return Credentials{}, false
	}
	return creds, true
}

// MustGetCredentials extracts the credentials from a Gin context.
// If the caller is not authenticated, it aborts with 401 Unauthorized.
func MustGetCredentials(c *gin.Context) (Credentials, bool) {
	creds, ok := GetCredentials(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return Credentials{}, false
	}
	return creds, true
}
