package profile

import (
	"net/http"
	"strings"
	"time"

	"profile_server/internal/batch"
	"profile_server/platform/apperr"
	"profile_server/platform/httpkit"
	"profile_server/platform/logger"

	"github.com/gin-gonic/gin"
)

// Handler serves the aggregated profile.
type Handler struct {
	binding       *Binding
	routes        batch.Routes
	emitEmptyETag bool
	log           *logger.Logger
	now           func() time.Time
}

// NewHandler creates the profile handler.
func NewHandler(binding *Binding, routes batch.Routes, emitEmptyETag bool, log *logger.Logger) *Handler {
	return &Handler{
		binding:       binding,
		routes:        routes,
		emitEmptyETag: emitEmptyETag,
		log:           log,
		now:           time.Now,
	}
}

// RegisterRoutes mounts the profile endpoint on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", h.GetProfile)
}

// GetProfile returns the caller's profile with ETag and Last-Modified.
func (h *Handler) GetProfile(c *gin.Context) {
	creds, ok := httpkit.MustGetCredentials(c)
	if !ok {
		return
	}

	if !IsAuthorized(creds.Scope) {
		httpkit.HandleError(c, apperr.Forbidden("insufficient scope"))
		return
	}

	outcome, err := h.binding.Method().Call(c.Request.Context(), batch.Args{
		Credentials:   creds,
		Authorization: c.GetHeader("Authorization"),
	}, h.routes)
	if httpkit.HandleError(c, err) {
		return
	}

	composed, err := Compose(outcome, creds, h.now(), h.emitEmptyETag)
	if httpkit.HandleError(c, err) {
		return
	}
	observe(h.log.WithContext(c.Request.Context()), outcome)

	if composed.HasETag() {
		c.Header("ETag", composed.ETag)
	}
	c.Header("Last-Modified", composed.LastModified.Format(http.TimeFormat))

	if notModified(c.Request, composed) {
		c.Status(http.StatusNotModified)
		return
	}
	httpkit.OK(c, composed.Profile)
}

// notModified evaluates If-None-Match, or If-Modified-Since when no
// If-None-Match was sent.
func notModified(r *http.Request, composed Composed) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		if !composed.HasETag() {
			return false
		}
		return etagMatches(inm, composed.ETag)
	}

	ims := r.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !composed.LastModified.Truncate(time.Second).After(since)
}

// etagMatches uses the weak comparison: W/ prefixes are ignored.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
