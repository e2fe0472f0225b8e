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
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AppFactory builds mountable applications for a symbolic binding name. It is
// the resolution collaborator consulted when a mount target is given as a
// binding rather than as a handler value. The options map is taken from the
// mount's configuration section and is interpreted by the factory alone.
type AppFactory interface {
	Binding() string
	New(options map[interface{}]interface{}) (http.Handler, error)
}

// Registry describes a registry of binding to AppFactory registrations
type Registry interface {
	Add(factory AppFactory) error
	Get(binding string) AppFactory
}

// RegistryMap is a basic Registry implementation backed by a simple mapping of binding (string) to AppFactory instances
type RegistryMap struct {
	factories map[string]AppFactory
}

// NewRegistryMap creates a new RegistryMap
func NewRegistryMap() *RegistryMap {
	return &RegistryMap{
		factories: map[string]AppFactory{},
	}
}

// Add adds a factory to the registry. Errors if a previous factory with the same binding is registered.
func (registry RegistryMap) Add(factory AppFactory) error {
	logrus.Debugf("adding xmount app factory with binding: %v", factory.Binding())
	if _, ok := registry.factories[factory.Binding()]; ok {
		return errors.Errorf("binding [%s] already registered", factory.Binding())
	}

	registry.factories[factory.Binding()] = factory

	return nil
}

// Get retrieves a factory based on a binding or nil if no factory for the binding is registered
func (registry RegistryMap) Get(binding string) AppFactory {
	return registry.factories[binding]
}
