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
	"fmt"
	"net/http"
	"sort"

	"github.com/sirupsen/logrus"
)

// TargetResolutionError is returned when a symbolic mount target cannot be
// turned into a handler: the binding has no registered AppFactory, or the
// factory failed to build one. Registration is fail-fast, so this surfaces at
// setup time, never during dispatch.
type TargetResolutionError struct {
	Binding string
	Err     error
}

func (e *TargetResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no app factory registered for binding [%s]", e.Binding)
	}
	return fmt.Sprintf("could not resolve binding [%s] to an app: %v", e.Binding, e.Err)
}

func (e *TargetResolutionError) Unwrap() error {
	return e.Err
}

// MountRegistry holds the ordered mount table of one dispatching application.
// Registration happens during a setup phase that completes before the owning
// Dispatcher starts serving; the match loop then reads the table without
// locking. Registering while traffic is live is out of contract.
type MountRegistry struct {
	owner        http.Handler
	apps         Registry
	index        *ReverseIndex
	points       []*MountPoint
	bindingPaths map[string]string
}

// NewMountRegistry creates a registry owned by the given application. The
// owner becomes the parent recorded on reverse links for everything mounted
// here. apps resolves symbolic mount targets and may be nil when only direct
// handlers will be mounted. index may be nil to disable reverse indexing.
func NewMountRegistry(owner http.Handler, apps Registry, index *ReverseIndex) *MountRegistry {
	return &MountRegistry{
		owner:        owner,
		apps:         apps,
		index:        index,
		bindingPaths: map[string]string{},
	}
}

// Mount attaches a handler at the location described by spec.
func (registry *MountRegistry) Mount(spec MountSpec, app http.Handler) error {
	point, err := NewMountPoint(spec, app)
	if err != nil {
		return err
	}

	registry.add(point)
	return nil
}

// MountBinding attaches the application registered under the given binding
// name at the location described by spec. The binding is resolved through the
// registry's app Registry immediately; an unknown binding or a factory
// failure returns a *TargetResolutionError.
func (registry *MountRegistry) MountBinding(spec MountSpec, binding string, options map[interface{}]interface{}) error {
	if registry.apps == nil {
		return &TargetResolutionError{Binding: binding}
	}

	factory := registry.apps.Get(binding)
	if factory == nil {
		return &TargetResolutionError{Binding: binding}
	}

	app, err := factory.New(options)
	if err != nil {
		return &TargetResolutionError{Binding: binding, Err: err}
	}

	point, err := NewMountPoint(spec, app)
	if err != nil {
		return err
	}
	point.Binding = binding

	registry.add(point)

	// first mount of a binding defines its canonical path, matching the
	// first-link policy of reverse resolution
	if _, ok := registry.bindingPaths[binding]; !ok {
		registry.bindingPaths[binding] = point.CanonicalPath
	}

	return nil
}

func (registry *MountRegistry) add(point *MountPoint) {
	logrus.Debugf("mounting handler at path [%s] host [%s]", point.CanonicalPath, point.Host)

	if registry.index != nil {
		registry.index.Add(point.Handler, &ReverseLink{
			Parent: registry.owner,
			Path:   point.Path,
			Host:   point.Host,
		})
	}

	registry.points = append(registry.points, point)

	// longer prefixes must be tried first or they would be shadowed by
	// shorter ones; SliceStable keeps registration order among equals
	sort.SliceStable(registry.points, func(i, j int) bool {
		return registry.points[i].specificity() > registry.points[j].specificity()
	})
}

// MountPoints returns the mount table in match order: descending specificity,
// registration order among ties. The returned slice is the registry's own and
// must not be mutated.
func (registry *MountRegistry) MountPoints() []*MountPoint {
	return registry.points
}

// BindingPath returns the canonical path recorded for a symbolic binding and
// whether one is recorded at all.
func (registry *MountRegistry) BindingPath(binding string) (string, bool) {
	path, ok := registry.bindingPaths[binding]
	return path, ok
}
