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
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/foundation/v2/debugz"
	transporttls "github.com/openziti/transport/v2/tls"
	"github.com/pkg/errors"

	"github.com/webfoundry/xmount/middleware"
)

type ServerContext struct {
	BindPoint    *BindPointConfig
	ServerConfig *ServerConfig
	Config       *InstanceConfig
}

type namedHttpServer struct {
	*http.Server
	MountBindingList []string
	BindPointConfig  *BindPointConfig
	ServerConfig     *ServerConfig
	InstanceConfig   *InstanceConfig
}

func (s namedHttpServer) NewBaseContext(_ net.Listener) context.Context {
	serverContext := &ServerContext{
		BindPoint:    s.BindPointConfig,
		ServerConfig: s.ServerConfig,
		Config:       s.InstanceConfig,
	}

	ctx := context.Background()
	ctx = context.WithValue(ctx, ServerContextKey, serverContext)

	return ctx
}

// Server represents all the http.Server's and http.Handler's necessary to run a single xmount.ServerConfig
type Server struct {
	DefaultHttpHandlerProviderImpl
	HttpServers    []*namedHttpServer
	Dispatcher     *Dispatcher
	logWriter      *io.PipeWriter
	OnHandlerPanic func(writer http.ResponseWriter, request *http.Request, panicVal interface{})
	ServerConfig   *ServerConfig
}

// NewServer creates a new Server from a ServerConfig. A Dispatcher is built and populated from the configured mounts,
// resolving each binding through the instance's Registry. Mount resolution failures surface immediately.
func NewServer(instance Instance, serverConfig *ServerConfig) (*Server, error) {
	logWriter := pfxlog.Logger().Writer()

	server := &Server{
		logWriter:    logWriter,
		HttpServers:  []*namedHttpServer{},
		ServerConfig: serverConfig,
	}

	server.SetParent(instance)

	dispatcher := NewDispatcher(instance.GetRegistry(), instance.GetReverseIndex())
	dispatcher.SetParent(server)

	var mountBindingList []string

	for _, mount := range serverConfig.Mounts {
		if err := dispatcher.MountBinding(mount.Spec(), mount.Binding(), mount.Options()); err != nil {
			return nil, errors.Wrapf(err, "error mounting binding [%s] for server [%s]", mount.Binding(), serverConfig.Name)
		}
		mountBindingList = append(mountBindingList, mount.Binding())
	}

	server.Dispatcher = dispatcher

	var tlsConfig *tls.Config
	if serverConfig.Identity != nil {
		tlsConfig = serverConfig.Identity.ServerTLSConfig()
		tlsConfig.ClientAuth = tls.RequestClientCert
		tlsConfig.MinVersion = uint16(serverConfig.Options.MinTLSVersion)
		tlsConfig.MaxVersion = uint16(serverConfig.Options.MaxTLSVersion)
	}

	for _, bindPoint := range serverConfig.BindPoints {
		namedServer := &namedHttpServer{
			MountBindingList: mountBindingList,
			ServerConfig:     serverConfig,
			BindPointConfig:  bindPoint,
			InstanceConfig:   instance.GetConfig(),
			Server: &http.Server{
				Addr:         bindPoint.InterfaceAddress,
				WriteTimeout: serverConfig.Options.WriteTimeout,
				ReadTimeout:  serverConfig.Options.ReadTimeout,
				IdleTimeout:  serverConfig.Options.IdleTimeout,
				Handler:      server.wrapHandler(dispatcher),
				TLSConfig:    tlsConfig,
				ErrorLog:     log.New(logWriter, "", 0),
			},
		}

		namedServer.BaseContext = namedServer.NewBaseContext

		server.HttpServers = append(server.HttpServers, namedServer)
	}

	return server, nil
}

func (server *Server) wrapHandler(handler http.Handler) http.Handler {
	//innermost/bottom -> outermost/top
	handler = server.wrapPanicRecovery(handler)
	handler = middleware.NewCompressionHandler(handler)
	return handler
}

// wrapPanicRecovery wraps a http.Handler with another http.Handler that provides recovery.
func (server *Server) wrapPanicRecovery(handler http.Handler) http.Handler {
	wrappedHandler := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		defer func() {
			if panicVal := recover(); panicVal != nil {
				if server.OnHandlerPanic != nil {
					server.OnHandlerPanic(writer, request, panicVal)
					return
				}
				pfxlog.Logger().Errorf("panic caught by server handler: %v\n%v", panicVal, debugz.GenerateLocalStack())
			}
		}()

		handler.ServeHTTP(writer, request)
	})

	return wrappedHandler
}

// Start the server and all underlying http.Server's
func (server *Server) Start() error {
	logger := pfxlog.Logger()

	for _, httpServer := range server.HttpServers {
		logger.Infof("starting server %s to listen and serve on %s with mounts: %v", httpServer.ServerConfig.Name, httpServer.Addr, httpServer.MountBindingList)

		var listener net.Listener
		var err error

		if cfg := httpServer.TLSConfig; cfg != nil {
			// make sure to listen to the expected protocols
			cfg.NextProtos = append(cfg.NextProtos, "h2", "http/1.1", "")
			listener, err = transporttls.ListenTLS(httpServer.Addr, httpServer.ServerConfig.Name, cfg)
		} else {
			listener, err = net.Listen("tcp", httpServer.Addr)
		}

		if err != nil {
			return fmt.Errorf("error listening: %s", err)
		}

		err = httpServer.Serve(listener)

		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}
	}

	return nil
}

// Shutdown stops the server and all underlying http.Server's
func (server *Server) Shutdown(ctx context.Context) {
	_ = server.logWriter.Close()

	for _, httpServer := range server.HttpServers {
		localServer := httpServer
		func() {
			_ = localServer.Shutdown(ctx)
		}()
	}
}
