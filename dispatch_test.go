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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var _ http.Handler = (*recordingApp)(nil)

// recordingApp captures the path accounting and context state it was invoked with.
type recordingApp struct {
	served     bool
	scriptName string
	pathInfo   string
	resolved   map[string]string
	resolve    []string
}

func (app *recordingApp) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	app.served = true

	if routePath := RoutePathFromContext(request.Context()); routePath != nil {
		app.scriptName = routePath.ScriptName
		app.pathInfo = routePath.PathInfo
	}

	if len(app.resolve) > 0 {
		app.resolved = map[string]string{}
		for _, binding := range app.resolve {
			app.resolved[binding] = ResolveBinding(request.Context(), binding)
		}
	}

	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("ok"))
}

var _ AppFactory = (*staticAppFactory)(nil)

type staticAppFactory struct {
	binding string
	handler http.Handler
	err     error
}

func (factory *staticAppFactory) Binding() string {
	return factory.binding
}

func (factory *staticAppFactory) New(_ map[interface{}]interface{}) (http.Handler, error) {
	return factory.handler, factory.err
}

func Test_Dispatcher_redirects(t *testing.T) {

	t.Run("a bare prefix GET is redirected to the trailing slash form", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/wiki", nil))

		req.Equal(http.StatusSeeOther, recorder.Code)
		req.Equal("/wiki/", recorder.Header().Get("Location"))
		req.False(app.served)
	})

	t.Run("the query string is carried on the redirect location", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/wiki?x=1", nil))

		req.Equal(http.StatusSeeOther, recorder.Code)
		req.Equal("/wiki/?x=1", recorder.Header().Get("Location"))
	})

	t.Run("a bare prefix POST is dispatched, not redirected", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/wiki", nil))

		req.True(app.served)
		req.Equal("/wiki", app.scriptName)
		req.Equal("", app.pathInfo)
	})

	t.Run("noRedirect mounts dispatch the bare prefix with empty path info", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki", NoRedirect: true}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/wiki", nil))

		req.True(app.served)
		req.Equal("/wiki", app.scriptName)
		req.Equal("", app.pathInfo)
	})
}

func Test_Dispatcher_rewrites(t *testing.T) {

	t.Run("a sub path request moves the prefix onto the script name", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/wiki/Page", nil))

		req.True(app.served)
		req.Equal("/wiki", app.scriptName)
		req.Equal("/Page", app.pathInfo)
	})

	t.Run("host only mounts leave the path accounting untouched", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Host: "example.com"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://www.example.com/anything", nil))

		req.True(app.served)
		req.Equal("", app.scriptName)
		req.Equal("/anything", app.pathInfo)
	})

	t.Run("nested dispatchers accumulate prefixes through the shared route path", func(t *testing.T) {
		app := &recordingApp{}
		inner := NewDispatcher(nil, nil)
		outer := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(inner.Mount(MountSpec{Path: "/inner"}, app))
		req.NoError(outer.Mount(MountSpec{Path: "/outer"}, inner))

		recorder := httptest.NewRecorder()
		outer.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/outer/inner/x", nil))

		req.True(app.served)
		req.Equal("/outer/inner", app.scriptName)
		req.Equal("/x", app.pathInfo)
	})

	t.Run("a nested bare prefix redirect includes the outer script name", func(t *testing.T) {
		app := &recordingApp{}
		inner := NewDispatcher(nil, nil)
		outer := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(inner.Mount(MountSpec{Path: "/inner"}, app))
		req.NoError(outer.Mount(MountSpec{Path: "/outer"}, inner))

		recorder := httptest.NewRecorder()
		outer.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/outer/inner", nil))

		req.Equal(http.StatusSeeOther, recorder.Code)
		req.Equal("/outer/inner/", recorder.Header().Get("Location"))
		req.False(app.served)
	})
}

func Test_Dispatcher_matching(t *testing.T) {

	t.Run("a configured host also matches sub domains by suffix", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Host: "example.com"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://sub.example.com/x", nil))

		req.True(app.served)
	})

	t.Run("a different domain does not match", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Host: "example.com"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://example.org/x", nil))

		req.False(app.served)
		req.Equal(http.StatusNotFound, recorder.Code)
	})

	t.Run("host and path constraints must both pass", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki", Host: "example.com"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://example.org/wiki/Page", nil))
		req.False(app.served)

		recorder = httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://www.example.com/wiki/Page", nil))
		req.True(app.served)
	})

	t.Run("a port on the host header does not defeat suffix matching", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Host: "example.com"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://sub.example.com:8080/x", nil))

		req.True(app.served)
	})

	t.Run("the more specific prefix wins regardless of registration order", func(t *testing.T) {
		short := &recordingApp{}
		long := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki"}, short))
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki/admin"}, long))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/wiki/admin/users", nil))

		req.True(long.served)
		req.False(short.served)
	})
}

func Test_Dispatcher_fallThrough(t *testing.T) {

	t.Run("an unmatched request falls through to the default handler chain unchanged", func(t *testing.T) {
		app := &recordingApp{}
		dispatcher := NewDispatcher(nil, nil)

		var fallbackPath string
		sawRoutePath := false
		dispatcher.SetDefaultHttpHandler(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			fallbackPath = request.URL.Path
			sawRoutePath = RoutePathFromContext(request.Context()) != nil
			writer.WriteHeader(http.StatusTeapot)
		}))

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki"}, app))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/blog/post", nil))

		req.False(app.served)
		req.Equal(http.StatusTeapot, recorder.Code)
		req.Equal("/blog/post", fallbackPath)
		req.False(sawRoutePath)
	})

	t.Run("an unmatched request with no chain yields an empty 404", func(t *testing.T) {
		dispatcher := NewDispatcher(nil, nil)

		req := require.New(t)
		req.NoError(dispatcher.Mount(MountSpec{Path: "/wiki"}, &recordingApp{}))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/blog", nil))

		req.Equal(http.StatusNotFound, recorder.Code)
		req.Empty(recorder.Body.Bytes())
	})
}

func Test_Dispatcher_bindingResolver(t *testing.T) {

	t.Run("a mounted app can resolve its own registry's bindings", func(t *testing.T) {
		app := &recordingApp{resolve: []string{"wiki", "missing"}}

		registry := NewRegistryMap()
		req := require.New(t)
		req.NoError(registry.Add(&staticAppFactory{binding: "wiki", handler: app}))

		dispatcher := NewDispatcher(registry, nil)
		req.NoError(dispatcher.MountBinding(MountSpec{Path: "/wiki"}, "wiki", nil))

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/wiki/Page", nil))

		req.True(app.served)
		req.Equal("/wiki/", app.resolved["wiki"])
		req.Equal("/[unresolved:missing]", app.resolved["missing"])
	})

	t.Run("resolution chains outward through enclosing mounts", func(t *testing.T) {
		app := &recordingApp{resolve: []string{"wiki", "api"}}

		innerRegistry := NewRegistryMap()
		req := require.New(t)
		req.NoError(innerRegistry.Add(&staticAppFactory{binding: "wiki", handler: app}))

		inner := NewDispatcher(innerRegistry, nil)
		req.NoError(inner.MountBinding(MountSpec{Path: "/wiki"}, "wiki", nil))

		outerRegistry := NewRegistryMap()
		req.NoError(outerRegistry.Add(&staticAppFactory{binding: "api", handler: inner}))

		outer := NewDispatcher(outerRegistry, nil)
		req.NoError(outer.MountBinding(MountSpec{Path: "/api"}, "api", nil))

		recorder := httptest.NewRecorder()
		outer.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/wiki/Page", nil))

		req.True(app.served)
		req.Equal("/wiki/", app.resolved["wiki"])
		req.Equal("/api/", app.resolved["api"])
	})
}
