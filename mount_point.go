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
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingSpec is returned by mount registration when a MountSpec carries
// neither a path nor a host. A spec like that can never be intentional: use a
// path of "/" for a path catch-all instead.
var ErrMissingSpec = errors.New("mount spec must supply a path and/or a host")

// MountSpec describes where a sub-application should be attached. Path and
// Host are both optional but at least one must be set. A Path ending in "/"
// is taken verbatim as the canonical form; otherwise the canonical form is
// Path with a "/" appended. NoRedirect disables the 303 canonicalization
// redirect for bare-prefix GET requests.
type MountSpec struct {
	Path       string
	Host       string
	NoRedirect bool
}

// MountPoint is the normalized, immutable form of a MountSpec bound to a
// handler. Instances are built by a MountRegistry during registration and are
// never mutated afterwards, so the match loop reads them without locking.
type MountPoint struct {
	// Path is the mount prefix without a trailing slash. Empty for host-only
	// mounts and for mounts at "/".
	Path string

	// CanonicalPath is Path with exactly one trailing slash. It is empty iff
	// the mount has no path constraint at all; a mount at "/" has an empty
	// Path but a CanonicalPath of "/".
	CanonicalPath string

	// Host, when set, must be a suffix of the request's Host header for the
	// mount to match. "example.com" also matches "www.example.com".
	Host string

	// RedirectOnMissingSlash controls the 303 redirect sent for GET requests
	// whose remaining path equals Path exactly.
	RedirectOnMissingSlash bool

	// Binding is the symbolic name the handler was resolved from, or empty
	// when the handler was mounted directly.
	Binding string

	Handler http.Handler
}

// NewMountPoint normalizes a MountSpec into a MountPoint for the given
// handler. Returns ErrMissingSpec when the spec names neither path nor host.
func NewMountPoint(spec MountSpec, handler http.Handler) (*MountPoint, error) {
	if spec.Path == "" && spec.Host == "" {
		return nil, ErrMissingSpec
	}

	if handler == nil {
		return nil, errors.New("mount handler must not be nil")
	}

	point := &MountPoint{
		Host:                   spec.Host,
		RedirectOnMissingSlash: !spec.NoRedirect,
		Handler:                handler,
	}

	if spec.Path != "" {
		if strings.HasSuffix(spec.Path, "/") {
			point.CanonicalPath = spec.Path
			point.Path = strings.TrimSuffix(spec.Path, "/")
		} else {
			point.Path = spec.Path
			point.CanonicalPath = spec.Path + "/"
		}
	}

	return point, nil
}

// HasPath reports whether the mount constrains the request path at all. A
// mount at "/" still has a path constraint (one every path satisfies).
func (point *MountPoint) HasPath() bool {
	return point.CanonicalPath != ""
}

// specificity is the ordering key for the registry: the number of path
// segments, approximated by counting "/" runes. Host-only mounts score 0 and
// therefore sort after every path-bearing mount of equal registration age.
func (point *MountPoint) specificity() int {
	return strings.Count(point.Path, "/")
}

// matchesHost tests the request's Host header against the mount's host
// suffix. Mounts without a host constraint match every host.
func (point *MountPoint) matchesHost(host string) bool {
	if point.Host == "" {
		return true
	}
	return strings.HasSuffix(host, point.Host)
}

// matchesPath tests the remaining request path (pathInfo) against the mount's
// prefix. The bare prefix matches as well as any sub-path under the canonical
// trailing-slash form.
func (point *MountPoint) matchesPath(pathInfo string) bool {
	if !point.HasPath() {
		return true
	}
	return pathInfo == point.Path || strings.HasPrefix(pathInfo, point.CanonicalPath)
}
