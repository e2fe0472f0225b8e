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

/*
Package xmount lets one HTTP-serving application embed other, independently written applications at URI path
prefixes or virtual hosts, and lets code elsewhere in the process recover the externally visible URL of a mounted
application given only a handle to it.

Basics

The central component is the Dispatcher, an http.Handler owning a MountRegistry of MountPoint entries. Each
MountPoint binds a path prefix and/or a host suffix to a handler. Registration happens during a setup phase; once
traffic is being served the registry is treated as immutable and the match loop runs without locking.

Mount points are kept ordered by specificity - the number of path segments in the mount prefix - so that longer
prefixes are always tried before shorter ones that would otherwise shadow them. Among mounts of equal specificity,
registration order decides. At request time the first mount whose host and path tests both pass wins. A GET request
naming a mount's bare prefix is answered with a 303 redirect to the trailing-slash form (unless the mount disables
this), so mounted applications always see a consistent root. Any other match rewrites the request's path accounting:
the matched prefix moves from the remaining path (PathInfo) onto the consumed prefix (ScriptName), and the handler
is invoked. The accounting lives in a RoutePath shared through the request context, so nested Dispatchers compute
correct cumulative prefixes. Requests no mount matches fall through, unmodified, to the handler chain the
Dispatcher is composed into.

Mount targets may be handler values or symbolic binding names resolved through a Registry of AppFactory instances,
the same way server configuration refers to mounts by binding. Each registration also records a ReverseLink in a
ReverseIndex; ReverseIndex.ResolvePath walks those links upward through the mounting parents to reconstruct a
handler's full external path. Within a request, ResolveBinding resolves a binding name to its mounted path, chaining
outward through enclosing mounts.

Instance, ServerConfig, BindPointConfig and friends assemble all of the above from configuration maps, stand up one
http.Server per bind point (TLS via an identity when one is configured), and wrap the dispatch stack with panic
recovery and response compression.
*/
package xmount
