package batch

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route names one sub-resource: the field it fills and where it lives.
type Route struct {
	Field string `yaml:"field"`
	Path  string `yaml:"path"`
}

// Routes is an ordered sub-resource map.
type Routes []Route

// Fields returns the field names in order.
func (r Routes) Fields() []string {
	out := make([]string, len(r))
	for i, route := range r {
		out[i] = route.Field
	}
	return out
}

// Validate checks that every route is complete and fields are unique.
func (r Routes) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("routes: at least one route is required")
	}
	seen := make(map[string]struct{}, len(r))
	for i, route := range r {
		if strings.TrimSpace(route.Field) == "" {
			return fmt.Errorf("routes[%d]: field is required", i)
		}
		if !strings.HasPrefix(route.Path, "/") {
			return fmt.Errorf("routes[%d]: path %q must start with /", i, route.Path)
		}
		if _, dup := seen[route.Field]; dup {
			return fmt.Errorf("routes[%d]: duplicate field %q", i, route.Field)
		}
		seen[route.Field] = struct{}{}
	}
	return nil
}

type routesFile struct {
	Routes Routes `yaml:"routes"`
}

// LoadRoutes reads a YAML document of the form
//
//	routes:
//	  - field: email
//	    path: /v1/email
func LoadRoutes(path string) (Routes, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return ParseRoutes(raw)
}

// ParseRoutes decodes and validates a routes document.
func ParseRoutes(raw []byte) (Routes, error) {
	var doc routesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}
	if err := doc.Routes.Validate(); err != nil {
		return nil, err
	}
	return doc.Routes, nil
}
