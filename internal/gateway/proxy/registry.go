package proxy

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// App is one proxied backend application, reachable under the path prefix
// "/" + Name.
type App struct {
	Name string
	URL  *url.URL
}

// Registry maps path prefixes to backend apps. Built once at startup from
// configuration and never mutated, so concurrent lookups need no locking.
type Registry struct {
	apps  map[string]App
	names []string
}

// NewRegistry builds a registry from {name, base URL} pairs.
func NewRegistry(entries map[string]string) (*Registry, error) {
	reg := &Registry{apps: make(map[string]App, len(entries))}

	for name, raw := range entries {
		if name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("invalid app name %q", name)
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("app %q: invalid url %q: %w", name, raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("app %q: unsupported scheme %q", name, u.Scheme)
		}
		reg.apps[name] = App{Name: name, URL: u}
		reg.names = append(reg.names, name)
	}

	sort.Strings(reg.names)
	return reg, nil
}

// Resolve matches the first path segment against the registered app names.
// The match is segment-exact: "/sonarr/foo" matches app "sonarr" but
// "/sonarrx/foo" does not. It returns the app and the remainder of the path
// (never empty; "/" at minimum).
func (reg *Registry) Resolve(path string) (App, string, bool) {
	name, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")

	app, ok := reg.apps[name]
	if !ok {
		return App{}, "", false
	}
	return app, "/" + rest, true
}

// Names returns the registered app names in sorted order.
func (reg *Registry) Names() []string {
	return reg.names
}
