package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixdeck/internal/server"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources/spotify"
	"github.com/urfave/cli/v3"
)

// SpotifyAuth runs the authorization code flow and stores the refresh token in the Spotify settings.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify source not registered", shared.ErrServiceUnavailable)
	}

	doc := r.spotify.Settings()
	if err := doc.Load(); err != nil {
		r.logger.Warn("using current Spotify settings", "error", err)
	}
	cfg := doc.Get()
	if !cfg.HasCredentials() {
		return fmt.Errorf("%w: set client_id and client_secret with 'mixdeck settings set spotify <key> <value>'", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "http://" + r.config.Server.Addr() + "/callback"
	}

	flow := &server.AuthFlow{
		Config:  spotify.OAuthConfig(cfg, r.spotify.Endpoints),
		Timeout: cmd.Duration("timeout"),
		Logger:  r.logger,
		Open: func(authURL string) error {
			r.writePlain("→ Opening browser for Spotify authorization...\n")
			if err := r.openURL(authURL); err != nil {
				r.logger.Warnf("failed to open browser automatically %v", err)
				r.writePlainln("⚠ Could not open browser automatically.")
				r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
			}
			return nil
		},
	}

	r.writePlain("→ Waiting for authorization on %s...\n", cfg.RedirectURI)
	token, err := flow.Run(ctx)
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token received", shared.ErrAuthFailed)
	}

	doc.Update(func(s *spotify.Settings) {
		s.RefreshToken = token.RefreshToken
		s.RedirectURI = cfg.RedirectURI
	})
	if err := doc.Save(); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	r.logger.Info("spotify authorization stored", "path", doc.Path())
	return r.writePlain("✓ Spotify authorization saved to %s\n", doc.Path())
}
