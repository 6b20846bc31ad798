// Package server provides the small HTTP stack used for the Spotify authorization code flow.
//
// [BasicRouter] wraps [http.ServeMux] with method filtering and a [Middleware] chain. Middleware wraps handlers
// in reverse order (last added executes first). [Logging] and [Recover] log through charmbracelet/log.
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for tokens and publishes a single
// [OAuthResult]. Later callbacks are rejected.
//
// [AuthFlow] ties them together: it listens on the redirect URI's loopback address, opens the authorization URL,
// waits for the callback (or the timeout) and shuts the server down.
package server
