package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"profile_server/platform/apperr"
	"profile_server/platform/logger"
)

// maxBodyBytes bounds what is read from a single sub-resource response.
const maxBodyBytes = 64 << 10

// Fetcher retrieves the value of one sub-resource for a caller.
// A nil value with a nil error means the resource has no value.
type Fetcher interface {
	Fetch(ctx context.Context, args Args, route Route) (*string, error)
}

// HTTPFetcher reads sub-resources from the backing identity services.
type HTTPFetcher struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// NewHTTPFetcher creates a fetcher rooted at baseURL.
func NewHTTPFetcher(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, args Args, route Route) (*string, error) {
	reqURL := f.baseURL + route.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if args.Authorization != "" {
		req.Header.Set("Authorization", args.Authorization)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		f.log.Error("profile upstream request failed", "error", err, "url", reqURL)
		return nil, apperr.Wrap(apperr.KindUnavailable, "profile upstream unavailable", err).
			WithOp("batch.fetch")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		// The caller may not see this field; it is reported as empty.
		f.log.Debug("profile upstream field withheld", "status", resp.StatusCode, "url", reqURL)
		return nil, nil
	default:
		f.log.Error("profile upstream error", "status", resp.StatusCode, "url", reqURL)
		return nil, apperr.Upstream(fmt.Sprintf("profile upstream error: status %d", resp.StatusCode)).
			WithOp("batch.fetch").
			WithDetails(map[string]any{"field": route.Field, "status": resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "read profile upstream response", err).WithOp("batch.fetch")
	}
	return decodeField(body, route.Field)
}

// decodeField accepts either an object carrying field or a bare JSON string.
func decodeField(body []byte, field string) (*string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		var bare *string
		if err := json.Unmarshal(body, &bare); err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, "decode profile upstream response", err).WithOp("batch.fetch")
		}
		return bare, nil
	}

	raw, ok := obj[field]
	if !ok {
		return nil, nil
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "decode profile field "+field, err).WithOp("batch.fetch")
	}
	return value, nil
}
