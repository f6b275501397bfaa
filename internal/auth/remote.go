package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"profile_server/internal/auth/token"
	"profile_server/platform/apperr"
	"profile_server/platform/httpkit"
	"profile_server/platform/logger"
)

// RemoteVerifier asks an OAuth server to verify tokens.
type RemoteVerifier struct {
	httpClient *http.Client
	url        string
	log        *logger.Logger
}

// NewRemoteVerifier creates a verifier posting to verifyURL.
func NewRemoteVerifier(verifyURL string, timeout time.Duration, log *logger.Logger) *RemoteVerifier {
	return &RemoteVerifier{
		httpClient: &http.Client{Timeout: timeout},
		url:        verifyURL,
		log:        log,
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	User     string `json:"user"`
	ClientID string `json:"client_id"`
	Scope    any    `json:"scope"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, rawToken string) (httpkit.Credentials, error) {
	body, err := json.Marshal(verifyRequest{Token: rawToken})
	if err != nil {
		return httpkit.Credentials{}, fmt.Errorf("encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return httpkit.Credentials{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.log.Error("oauth verify request failed", "error", err, "url", v.url)
		return httpkit.Credentials{}, apperr.Wrap(apperr.KindUnavailable, "oauth server unavailable", err)
	}
	defer resp.Body.Close()

	fingerprint := token.Fingerprint(rawToken)
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		v.log.Debug("oauth token rejected", "status", resp.StatusCode, "token", fingerprint)
		return httpkit.Credentials{}, apperr.Unauthorized(errInvalidToken)
	default:
		v.log.Error("oauth verify upstream error", "status", resp.StatusCode)
		return httpkit.Credentials{}, apperr.Upstream(fmt.Sprintf("oauth verify failed: status %d", resp.StatusCode))
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return httpkit.Credentials{}, apperr.Wrap(apperr.KindUpstream, "decode verify response", err)
	}
	if out.User == "" {
		return httpkit.Credentials{}, apperr.Unauthorized("token has no subject")
	}

	v.log.Debug("oauth token verified", "user", out.User, "client", out.ClientID, "token", fingerprint)
	return httpkit.Credentials{User: out.User, Scope: parseScope(out.Scope)}, nil
}
