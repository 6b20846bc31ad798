// Spotify Web API source
//
// Search, metadata and playlists use the Web API (https://developer.spotify.com/documentation/web-api/reference/).
// Spotify does not expose audio, so downloads search for the track with yt-dlp and extract the first match.
//
// Authentication uses the user's refresh token when one is stored (see `mixdeck spotify auth`) and otherwise
// falls back to the client credentials flow, which only allows catalog access.
package spotify
