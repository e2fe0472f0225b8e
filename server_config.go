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

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/identity"
	"github.com/pkg/errors"
)

// ServerConfig is the configuration that will eventually be used to create a xmount.Server (which in turn houses all
// the components necessary to run one http.Server per bind point, dispatching to the configured mounts).
type ServerConfig struct {
	DefaultHttpHandlerProviderImpl
	Name       string
	Mounts     []*MountConfig
	BindPoints []*BindPointConfig
	Options    ServerConfigOptions

	DefaultIdentity identity.Identity
	Identity        identity.Identity
}

// Parse parses a configuration map to set all relevant ServerConfig values.
func (config *ServerConfig) Parse(configMap map[interface{}]interface{}, pathContext string) error {
	//parse name, required, string
	if nameInterface, ok := configMap["name"]; ok {
		if name, ok := nameInterface.(string); ok {
			config.Name = name
		} else {
			return errors.New("name is required to be a string")
		}
	} else {
		return errors.New("name is required")
	}

	//parse mounts, require 1, object, defer
	if mountInterface, ok := configMap["mounts"]; ok {
		if mountArrayInterfaces, ok := mountInterface.([]interface{}); ok {
			for i, mountInterface := range mountArrayInterfaces {
				if mountMap, ok := mountInterface.(map[interface{}]interface{}); ok {
					mount := &MountConfig{}
					if err := mount.Parse(mountMap); err != nil {
						return fmt.Errorf("error parsing mount configuration at index [%d]: %v", i, err)
					}

					config.Mounts = append(config.Mounts, mount)
				} else {
					return fmt.Errorf("error parsing mount configuration at index [%d]: not a map", i)
				}
			}
		} else {
			return errors.New("mounts section must be an array")
		}
	} else {
		return errors.New("mounts section is required")
	}

	//parse bindPoints
	if bindPointArrVal, ok := configMap["bindPoints"]; ok {
		if bindPointArr, ok := bindPointArrVal.([]interface{}); ok {
			for i, bp := range bindPointArr {
				if bpMap, ok := bp.(map[interface{}]interface{}); ok {
					bindPoint := &BindPointConfig{}
					if err := bindPoint.Parse(bpMap); err != nil {
						return errors.Wrapf(err, "error parsing bindPoint configuration at index [%d]", i)
					}

					config.BindPoints = append(config.BindPoints, bindPoint)
				} else {
					return fmt.Errorf("error parsing bindPoint configuration at index [%d]: not a map", i)
				}
			}
		} else {
			return errors.New("bindPoints must be an array")
		}
	} else {
		return errors.New("bindPoints is required")
	}

	//parse identity, optional, servers without one serve plain HTTP unless a default identity is set
	if identityInterface, ok := configMap["identity"]; ok {
		if identityMap, ok := identityInterface.(map[interface{}]interface{}); ok {
			if identityConfig, err := parseIdentityConfig(identityMap, pathContext+".identity"); err == nil {
				config.Identity, err = identity.LoadIdentity(*identityConfig)
				if err != nil {
					return fmt.Errorf("error loading identity: %v", err)
				}

				if err := config.Identity.WatchFiles(); err != nil {
					pfxlog.Logger().Warnf("could not enable file watching on server identity: %v", err)
				}
			} else {
				return fmt.Errorf("error parsing identity section: %v", err)
			}

		} else {
			return errors.New("identity section must be a map if defined")
		}

	} //no else, optional, will defer to the instance identity

	//parse options
	config.Options = ServerConfigOptions{}
	config.Options.Default()

	if optionsInterface, ok := configMap["options"]; ok {
		if optionMap, ok := optionsInterface.(map[interface{}]interface{}); ok {
			if err := config.Options.Parse(optionMap); err != nil {
				return fmt.Errorf("error parsing options section: %v", err)
			}
		} //no else, options are optional
	}

	return nil
}

// Validate all ServerConfig values
func (config *ServerConfig) Validate(registry Registry) error {
	if config.Name == "" {
		return errors.New("name must not be empty")
	}

	if len(config.Mounts) <= 0 {
		return errors.New("no mounts specified, must specify at least one")
	}

	for i, mount := range config.Mounts {
		if err := mount.Validate(); err != nil {
			return fmt.Errorf("invalid mount at index [%d]: %v", i, err)
		}

		//check if binding is valid
		if binding := registry.Get(mount.Binding()); binding == nil {
			return fmt.Errorf("invalid mount at index [%d]: invalid binding %s", i, mount.Binding())
		}
	}

	if len(config.BindPoints) <= 0 {
		return errors.New("no bindPoint specified, must specify at least one")
	}

	for i, bp := range config.BindPoints {
		if bp != nil {
			if err := bp.Validate(); err != nil {
				return fmt.Errorf("invalid bindPoint at index [%d]: %v", i, err)
			}
		} else {
			return errors.New("a nil bindPoint was processed")
		}
	}

	if config.Identity == nil {
		config.Identity = config.DefaultIdentity
	} //no identity at all is valid, the server will serve plain HTTP

	if err := config.Options.TlsVersionOptions.Validate(); err != nil {
		return fmt.Errorf("invalid TLS version option: %v", err)
	}

	if err := config.Options.TimeoutOptions.Validate(); err != nil {
		return fmt.Errorf("invalid timeout option: %v", err)
	}

	return nil
}
