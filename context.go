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

import "context"

type ContextKey string

const (
	MountContextKey           = ContextKey("xmount.MountPoint.ContextKey")
	RoutePathContextKey       = ContextKey("xmount.RoutePath.ContextKey")
	BindingResolverContextKey = ContextKey("xmount.BindingResolver.ContextKey")
	ServerContextKey          = ContextKey("xmount.Server.ContextKey")
)

// MountFromRequestContext is a utility function to retrieve the MountPoint a Dispatcher matched, useful for logging
// by downstream http handlers. Returns nil outside of a dispatched request.
func MountFromRequestContext(ctx context.Context) *MountPoint {
	if val := ctx.Value(MountContextKey); val != nil {
		if point, ok := val.(*MountPoint); ok {
			return point
		}
	}
	return nil
}

// RoutePathFromContext retrieves the mutable script-name/path-info accounting shared by nested Dispatchers for the
// current request. Returns nil when the request has not passed through a Dispatcher.
func RoutePathFromContext(ctx context.Context) *RoutePath {
	if val := ctx.Value(RoutePathContextKey); val != nil {
		if routePath, ok := val.(*RoutePath); ok {
			return routePath
		}
	}
	return nil
}

// BindingResolverFromContext retrieves the innermost binding resolver installed by a Dispatcher, or nil.
func BindingResolverFromContext(ctx context.Context) BindingResolver {
	if val := ctx.Value(BindingResolverContextKey); val != nil {
		if resolver, ok := val.(BindingResolver); ok {
			return resolver
		}
	}
	return nil
}

// ResolveBinding resolves a symbolic binding name to the canonical path it is mounted at, as seen by the current
// request. Resolution chains outward through enclosing mounts. An unknown binding yields a diagnostic placeholder
// rather than an error so templates can render something visible.
func ResolveBinding(ctx context.Context, binding string) string {
	if resolver := BindingResolverFromContext(ctx); resolver != nil {
		return resolver(binding)
	}
	return unresolvedBindingPath(binding)
}

// ServerContextFromRequestContext is a utility function to retrieve a *ServerContext reference from the http.Request
// that provides access to configuration like BindPointConfig, ServerConfig, and InstanceConfig values.
func ServerContextFromRequestContext(ctx context.Context) *ServerContext {
	if val := ctx.Value(ServerContextKey); val != nil {
		if serverContext, ok := val.(*ServerContext); ok {
			return serverContext
		}
	}
	return nil
}

func unresolvedBindingPath(binding string) string {
	return "/[unresolved:" + binding + "]"
}
