package profile

import (
	"fmt"

	"profile_server/internal/batch"
)

// Profile fields filled from the backing identity services.
const (
	FieldEmail       = "email"
	FieldUID         = "uid"
	FieldAvatar      = "avatar"
	FieldDisplayName = "displayName"
)

// DefaultRoutes maps every profile field to the service that owns it.
func DefaultRoutes() batch.Routes {
	return batch.Routes{
		{Field: FieldEmail, Path: "/v1/email"},
		{Field: FieldUID, Path: "/v1/uid"},
		{Field: FieldAvatar, Path: "/v1/avatar"},
		{Field: FieldDisplayName, Path: "/v1/display_name"},
	}
}

// LoadRoutes returns the default routes, or the routes from path when set.
// Overrides may only name profile fields.
func LoadRoutes(path string) (batch.Routes, error) {
	if path == "" {
		return DefaultRoutes(), nil
	}
	routes, err := batch.LoadRoutes(path)
	if err != nil {
		return nil, err
	}
	for _, field := range routes.Fields() {
		switch field {
		case FieldEmail, FieldUID, FieldAvatar, FieldDisplayName:
		default:
			return nil, fmt.Errorf("routes: unknown profile field %q", field)
		}
	}
	return routes, nil
}
