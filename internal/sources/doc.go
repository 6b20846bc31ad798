// package sources defines the provider abstraction shared by every music backend
//
// A [Provider] moves through Uninitialized, Initializing, Ready or Degraded, and finally Disposed.
// Capability services (search, metadata, download, playlists) are only reachable while the provider is Ready.
// [Base] implements the lifecycle so backends supply only their setup.
package sources
