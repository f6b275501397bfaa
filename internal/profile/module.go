// Package profile serves the caller's aggregated profile. It gates access by
// scope, fans out to the backing identity services through a cached batch
// method keyed by user and attaches ETag and Last-Modified validators.
package profile

import (
	"profile_server/internal/batch"
	apphttp "profile_server/internal/http"
	"profile_server/platform/config"
	"profile_server/platform/logger"
)

// Module is the profile bounded context module implementing http.Module.
type Module struct {
	binding *Binding
	handler *Handler
	log     *logger.Logger
}

// NewModule creates the profile module. The batch method is registered on
// registry lazily, on the first profile request.
func NewModule(registry *batch.Registry, cfg config.ProfileConfig, routes batch.Routes, log *logger.Logger) *Module {
	log = log.Named("routes.profile")
	binding := NewBinding(registry, cfg)

	return &Module{
		binding: binding,
		handler: NewHandler(binding, routes, cfg.GetEmitEmptyETag(), log),
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "profile"
}

// RegisterRoutes mounts the profile routes behind OAuth.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}
