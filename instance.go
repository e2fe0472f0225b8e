/*
	Copyright NetFoundry, Inc.

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
	"net/http"
	"os"
	"time"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/identity"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Instance ties together an AppFactory Registry and an InstanceConfig and owns the resulting Servers. It allows
// Instance implementations to be used during the normal component startup and configuration phase.
type Instance interface {
	DefaultHttpHandlerProvider
	Enabled() bool
	LoadConfig(cfgmap map[interface{}]interface{}) error
	Run()
	Shutdown()
	GetRegistry() Registry
	GetConfig() *InstanceConfig
	GetReverseIndex() *ReverseIndex
}

const (
	DefaultIdentitySection = "identity"
	DefaultConfigSection   = "mount"
)

// InstanceImpl is a basic implementation of Instance.
type InstanceImpl struct {
	DefaultHttpHandlerProviderImpl
	Config       *InstanceConfig
	servers      []*Server
	Registry     Registry
	ReverseIndex *ReverseIndex
}

var _ Instance = &InstanceImpl{}

// NewDefaultInstance creates an InstanceImpl around an app Registry. defaultIdentity may be nil, in which case every
// server must either configure its own identity or serve plain HTTP.
func NewDefaultInstance(registry Registry, defaultIdentity identity.Identity) *InstanceImpl {
	return &InstanceImpl{
		Registry:     registry,
		ReverseIndex: NewReverseIndex(),
		Config: &InstanceConfig{
			DefaultIdentity: defaultIdentity,
			Section:         DefaultConfigSection,
		},
	}
}

// GetRegistry returns the associated Registry
func (i *InstanceImpl) GetRegistry() Registry {
	return i.Registry
}

// GetConfig returns the associated InstanceConfig
func (i *InstanceImpl) GetConfig() *InstanceConfig {
	return i.Config
}

// GetReverseIndex returns the ReverseIndex shared by every registry this instance builds.
func (i *InstanceImpl) GetReverseIndex() *ReverseIndex {
	return i.ReverseIndex
}

// Enabled returns true/false on whether this subconfig should be considered enabled
func (i *InstanceImpl) Enabled() bool {
	return i.Config.Enabled()
}

// LoadConfig handles subconfig operations for xmount.Instance components
func (i *InstanceImpl) LoadConfig(cfgmap map[interface{}]interface{}) error {
	if err := i.Config.Parse(cfgmap); err != nil {
		return err
	}

	//validate sets enabled flag to true on success
	if err := i.Config.Validate(i.Registry); err != nil {
		return err
	}

	return nil
}

// Build assembles all the xmount components from configuration and prepares to have Start() called.
func (i *InstanceImpl) Build() {
	for _, serverConfig := range i.Config.ServerConfigs {
		server, err := NewServer(i, serverConfig)

		if err != nil {
			pfxlog.Logger().Fatalf("error building xmount server for %s: %v", serverConfig.Name, err)
		}

		i.servers = append(i.servers, server)
	}
}

// Start calls Start() on all Servers that were built by calling Build().
func (i *InstanceImpl) Start() {
	for _, server := range i.servers {
		s := server //avoid closure scoping issues
		go func() {
			if err := s.Start(); err != nil {
				pfxlog.Logger().Errorf("error starting server %s: %v", s.ServerConfig.Name, err)
			}
		}()
	}
}

// Run builds and starts the necessary xmount.Server's
func (i *InstanceImpl) Run() {
	i.Build()
	i.Start()
}

// Shutdown stop all running xmount.Server's
func (i *InstanceImpl) Shutdown() {
	for _, server := range i.servers {
		localServer := server
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
			defer cancel()
			localServer.Shutdown(ctx)
		}()
	}
}

// LoadConfigMap reads a YAML configuration file into the map shape consumed by InstanceConfig.Parse and the other
// Parse methods in this package.
func LoadConfigMap(path string) (map[interface{}]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read configuration file [%s]", path)
	}

	cfgmap := map[interface{}]interface{}{}
	if err := yaml.Unmarshal(data, &cfgmap); err != nil {
		return nil, errors.Wrapf(err, "could not parse configuration file [%s]", path)
	}

	return normalizeConfigValue(cfgmap).(map[interface{}]interface{}), nil
}

// normalizeConfigValue rewrites the string-keyed maps yaml.v3 produces for nested mappings into the
// interface-keyed maps the Parse methods consume.
func normalizeConfigValue(val interface{}) interface{} {
	switch typed := val.(type) {
	case map[string]interface{}:
		converted := map[interface{}]interface{}{}
		for k, v := range typed {
			converted[k] = normalizeConfigValue(v)
		}
		return converted
	case map[interface{}]interface{}:
		for k, v := range typed {
			typed[k] = normalizeConfigValue(v)
		}
		return typed
	case []interface{}:
		for idx, v := range typed {
			typed[idx] = normalizeConfigValue(v)
		}
		return typed
	default:
		return val
	}
}

// DefaultHttpHandlerProvider is an interface that allows different levels of xmount's components: Instance, Server,
// Dispatcher. The default handler used when no mount matches a request is resolved Instance > Server > Dispatcher.
type DefaultHttpHandlerProvider interface {
	GetDefaultHttpHandler() http.Handler
	SetDefaultHttpHandler(handler http.Handler)
	SetParent(parent DefaultHttpHandlerProvider)
}

type DefaultHttpHandlerProviderImpl struct {
	Parent      DefaultHttpHandlerProvider
	HttpHandler http.Handler
}

var _ DefaultHttpHandlerProvider = &DefaultHttpHandlerProviderImpl{}

func handler404(rw http.ResponseWriter, _ *http.Request) {
	rw.WriteHeader(http.StatusNotFound)
	_, _ = rw.Write([]byte{})
}

func (d *DefaultHttpHandlerProviderImpl) GetDefaultHttpHandler() http.Handler {
	if d.HttpHandler == nil && d.Parent != nil {
		if handler := d.Parent.GetDefaultHttpHandler(); handler == nil {
			h := http.HandlerFunc(handler404)
			return &h
		} else {
			return handler
		}
	}

	return d.HttpHandler
}

func (d *DefaultHttpHandlerProviderImpl) SetDefaultHttpHandler(handler http.Handler) {
	d.HttpHandler = handler
}

func (d *DefaultHttpHandlerProviderImpl) SetParent(parent DefaultHttpHandlerProvider) {
	d.Parent = parent
}
