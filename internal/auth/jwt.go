package auth

import (
	"context"
	"errors"

	"profile_server/platform/apperr"
	"profile_server/platform/httpkit"

	"github.com/golang-jwt/jwt/v5"
)

const errInvalidToken = "invalid token"

// JWTVerifier validates HMAC-signed access tokens. The caller is taken from
// the "user" claim, falling back to "sub".
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, rawToken string) (httpkit.Credentials, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return httpkit.Credentials{}, apperr.Wrap(apperr.KindUnauthorized, errInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return httpkit.Credentials{}, apperr.Unauthorized(errInvalidToken)
	}

	user, _ := claims["user"].(string)
	if user == "" {
		user, _ = claims["sub"].(string)
	}
	if user == "" {
		return httpkit.Credentials{}, apperr.Unauthorized("token has no subject")
	}

	return httpkit.Credentials{User: user, Scope: parseScope(claims["scope"])}, nil
}
