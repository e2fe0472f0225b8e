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

import "github.com/pkg/errors"

// MountConfig represents one entry of a ServerConfig's mount table: a binding name resolved through a Registry and
// the path prefix and/or host suffix the resulting application is attached at. The options provided by this
// structure are parsed by the AppFactory and the behavior, valid keys, and valid values are not defined by xmount
// components, but by that AppFactory and its resulting applications.
type MountConfig struct {
	binding    string
	path       string
	host       string
	noRedirect bool
	options    map[interface{}]interface{}
}

// Binding returns the string that identifies the AppFactory this mount's application is built from.
func (mount *MountConfig) Binding() string {
	return mount.binding
}

// Spec returns the MountSpec this configuration describes.
func (mount *MountConfig) Spec() MountSpec {
	return MountSpec{
		Path:       mount.path,
		Host:       mount.host,
		NoRedirect: mount.noRedirect,
	}
}

// Options returns the options associated with this MountConfig binding.
func (mount *MountConfig) Options() map[interface{}]interface{} {
	return mount.options
}

// Parse the configuration map for a MountConfig.
func (mount *MountConfig) Parse(mountConfigMap map[interface{}]interface{}) error {
	if bindingInterface, ok := mountConfigMap["binding"]; ok {
		if binding, ok := bindingInterface.(string); ok {
			mount.binding = binding
		} else {
			return errors.New("binding must be a string")
		}
	} else {
		return errors.New("binding is required")
	}

	if pathInterface, ok := mountConfigMap["path"]; ok {
		if path, ok := pathInterface.(string); ok {
			mount.path = path
		} else {
			return errors.New("path if declared must be a string")
		}
	} //no else, optional when host is supplied

	if hostInterface, ok := mountConfigMap["host"]; ok {
		if host, ok := hostInterface.(string); ok {
			mount.host = host
		} else {
			return errors.New("host if declared must be a string")
		}
	} //no else, optional when path is supplied

	if noRedirectInterface, ok := mountConfigMap["noRedirect"]; ok {
		if noRedirect, ok := noRedirectInterface.(bool); ok {
			mount.noRedirect = noRedirect
		} else {
			return errors.New("noRedirect if declared must be a boolean")
		}
	}

	if optionsInterface, ok := mountConfigMap["options"]; ok {
		if optionsMap, ok := optionsInterface.(map[interface{}]interface{}); ok {
			mount.options = optionsMap //leave to bindings to interpret further
		} else {
			return errors.New("options if declared must be a map")
		}
	} //no else optional

	return nil
}

// Validate this configuration object.
func (mount *MountConfig) Validate() error {
	if mount.Binding() == "" {
		return errors.New("binding must be specified")
	}

	if mount.path == "" && mount.host == "" {
		return errors.Wrapf(ErrMissingSpec, "mount for binding [%s]", mount.binding)
	}

	return nil
}
