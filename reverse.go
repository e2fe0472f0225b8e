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
	"reflect"

	"github.com/sirupsen/logrus"
)

// ReverseLink records one place a handler has been mounted: the application
// whose registry mounted it and the path/host it was mounted at. Links are
// created at registration time and never mutated or removed.
type ReverseLink struct {
	// Parent is the application owning the registry the handler was mounted
	// into. Walking Parent links upward reconstructs the external path.
	Parent http.Handler

	// Path is the mount prefix without trailing slash; empty for host-only
	// mounts.
	Path string

	Host string
}

// ReverseIndex is a side table from handler identity to the ReverseLinks
// recorded for it. It is a separate component rather than state on the
// handlers themselves, so arbitrary http.Handler values can be mounted
// without implementing anything. Like the mount tables it is written during
// setup and read-only during traffic.
//
// Handler identity requires a comparable dynamic type. Handlers backed by
// func types (http.HandlerFunc) cannot be indexed; they still dispatch
// normally but ResolvePath treats them as roots.
type ReverseIndex struct {
	links map[http.Handler][]*ReverseLink
}

// NewReverseIndex creates an empty ReverseIndex. One index is typically
// shared by every registry in a process so that reverse resolution can cross
// registry boundaries.
func NewReverseIndex() *ReverseIndex {
	return &ReverseIndex{
		links: map[http.Handler][]*ReverseLink{},
	}
}

// Add appends a link to the handler's entry. A handler accumulates one link
// per mount call; the first one recorded is the one ResolvePath follows.
func (index *ReverseIndex) Add(handler http.Handler, link *ReverseLink) {
	if !comparableHandler(handler) {
		logrus.Debugf("handler of type %T is not comparable, skipping reverse index entry for path [%s]", handler, link.Path)
		return
	}

	index.links[handler] = append(index.links[handler], link)
}

// Links returns the links recorded for a handler in registration order, or
// nil for a root/unindexed handler.
func (index *ReverseIndex) Links(handler http.Handler) []*ReverseLink {
	if !comparableHandler(handler) {
		return nil
	}
	return index.links[handler]
}

// ResolvePath reconstructs the externally visible path of a handler by
// walking its parent chain, prepending each link's path. A handler with no
// links is a root and yields "". When a handler is mounted in more than one
// place the first-registered link is followed at every level; other mount
// locations are not reported. A visited set makes link cycles terminate at
// the point of the repeat, so the result is always a finite string and never
// an error.
func (index *ReverseIndex) ResolvePath(handler http.Handler) string {
	path := ""
	visited := map[http.Handler]bool{}

	current := handler
	for current != nil && comparableHandler(current) && !visited[current] {
		visited[current] = true

		links := index.links[current]
		if len(links) == 0 {
			break
		}

		link := links[0]
		path = link.Path + path
		current = link.Parent
	}

	return path
}

func comparableHandler(handler http.Handler) bool {
	if handler == nil {
		return false
	}
	return reflect.TypeOf(handler).Comparable()
}
