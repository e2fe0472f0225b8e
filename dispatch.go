/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package xmount

import (
	"context"
	"net"
	"net/http"
)

// RoutePath is the consumed-prefix/remaining-suffix split of a request's path
// as it passes through nested Dispatchers. A single RoutePath is shared via
// the request context and mutated in place: ScriptName grows and PathInfo
// shrinks at each matched mount, so inner dispatchers see cumulative
// accounting. A RoutePath belongs to exactly one in-flight request.
type RoutePath struct {
	ScriptName string
	PathInfo   string
}

// BindingResolver resolves a symbolic binding name to the canonical path it
// is mounted at. Resolvers are installed into the request context by
// Dispatchers and chain to the resolver of the enclosing mount; a name no
// level knows yields a diagnostic placeholder, never an error.
type BindingResolver func(binding string) string

// Dispatcher routes requests to the applications mounted into its
// MountRegistry. It tries mount points in registry order (descending
// specificity), performing the canonicalization redirect or the
// scriptName/pathInfo rewrite for the first mount whose host and path tests
// both pass. Requests no mount matches fall through, unmodified, to the
// default handler chain the Dispatcher is parented into; with no chain
// configured an empty 404 is sent.
type Dispatcher struct {
	DefaultHttpHandlerProviderImpl
	registry *MountRegistry
}

var _ http.Handler = &Dispatcher{}

// NewDispatcher creates a Dispatcher with its own MountRegistry. The
// dispatcher itself is the registry's owning application: reverse links
// recorded for mounted handlers point back at it. apps and index may be nil,
// disabling symbolic targets and reverse indexing respectively.
func NewDispatcher(apps Registry, index *ReverseIndex) *Dispatcher {
	dispatcher := &Dispatcher{}
	dispatcher.registry = NewMountRegistry(dispatcher, apps, index)
	return dispatcher
}

// Mount attaches a handler at the location described by spec.
func (dispatcher *Dispatcher) Mount(spec MountSpec, app http.Handler) error {
	return dispatcher.registry.Mount(spec, app)
}

// MountBinding attaches the application registered under binding at the
// location described by spec.
func (dispatcher *Dispatcher) MountBinding(spec MountSpec, binding string, options map[interface{}]interface{}) error {
	return dispatcher.registry.MountBinding(spec, binding, options)
}

// Registry returns the dispatcher's MountRegistry.
func (dispatcher *Dispatcher) Registry() *MountRegistry {
	return dispatcher.registry
}

func (dispatcher *Dispatcher) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	routePath := RoutePathFromContext(request.Context())

	scriptName := ""
	pathInfo := request.URL.Path
	if routePath != nil {
		scriptName = routePath.ScriptName
		pathInfo = routePath.PathInfo
	}

	host := requestHost(request)

	for _, point := range dispatcher.registry.MountPoints() {
		if !point.matchesHost(host) || !point.matchesPath(pathInfo) {
			continue
		}

		if point.HasPath() {
			// a bare-prefix GET is normalized to the trailing-slash form so
			// the mounted application always sees a consistent root
			if point.RedirectOnMissingSlash && pathInfo == point.Path && request.Method == http.MethodGet {
				location := scriptName + point.CanonicalPath
				if query := request.URL.RawQuery; query != "" {
					location += "?" + query
				}
				writer.Header().Set("Location", location)
				writer.WriteHeader(http.StatusSeeOther)
				_, _ = writer.Write([]byte("see " + location + "\n"))
				return
			}
		}

		ctx := request.Context()

		if routePath == nil {
			routePath = &RoutePath{ScriptName: scriptName, PathInfo: pathInfo}
			ctx = context.WithValue(ctx, RoutePathContextKey, routePath)
		}

		// host-only mounts forward the path accounting untouched
		if point.HasPath() {
			routePath.ScriptName += point.Path
			routePath.PathInfo = pathInfo[len(point.Path):]
		}

		ctx = context.WithValue(ctx, MountContextKey, point)
		ctx = dispatcher.withBindingResolver(ctx)

		point.Handler.ServeHTTP(writer, request.WithContext(ctx))
		return
	}

	// no mount matched: expected fall-through, not a failure
	if defaultHttpHandler := dispatcher.GetDefaultHttpHandler(); defaultHttpHandler != nil {
		defaultHttpHandler.ServeHTTP(writer, request)
		return
	}

	writer.WriteHeader(http.StatusNotFound)
	_, _ = writer.Write([]byte{})
}

// withBindingResolver installs a resolver backed by this dispatcher's binding
// table, falling back to whatever resolver an enclosing mount installed.
func (dispatcher *Dispatcher) withBindingResolver(ctx context.Context) context.Context {
	parent := BindingResolverFromContext(ctx)
	registry := dispatcher.registry

	resolver := BindingResolver(func(binding string) string {
		if path, ok := registry.BindingPath(binding); ok {
			return path
		}
		if parent != nil {
			return parent(binding)
		}
		return unresolvedBindingPath(binding)
	})

	return context.WithValue(ctx, BindingResolverContextKey, resolver)
}

// requestHost strips any port from the request's Host header before host
// suffix matching.
func requestHost(request *http.Request) string {
	if host, _, err := net.SplitHostPort(request.Host); err == nil {
		return host
	}
	return request.Host
}
