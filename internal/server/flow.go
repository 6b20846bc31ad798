package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultAuthTimeout bounds how long [AuthFlow.Run] waits for the user.
const DefaultAuthTimeout = 2 * time.Minute

// AuthFlow runs the authorization code flow against a temporary local callback server.
type AuthFlow struct {
	Config *oauth2.Config
	// Listener overrides the address derived from Config.RedirectURL.
	Listener net.Listener
	Timeout  time.Duration
	// Open presents the authorization URL to the user, usually by opening a browser.
	Open   func(authURL string) error
	Logger *log.Logger
}

// CallbackAddr splits a loopback redirect URI into the listen address and callback path.
func CallbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("%w: redirect URI: %v", shared.ErrInvalidConfig, err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return "", "", fmt.Errorf("%w: redirect URI must be an http loopback address, got %q", shared.ErrInvalidConfig, redirectURI)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		port = "80"
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return net.JoinHostPort(host, port), path, nil
}

// Run serves the callback, presents the authorization URL and waits for the token.
func (f *AuthFlow) Run(ctx context.Context) (*oauth2.Token, error) {
	logger := shared.WithLogger(f.Logger, "component", "oauth")
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}

	addr, path, err := CallbackAddr(f.Config.RedirectURL)
	if err != nil {
		return nil, err
	}

	ln := f.Listener
	if ln == nil {
		if ln, err = net.Listen("tcp", addr); err != nil {
			return nil, fmt.Errorf("failed to start callback server: %w", err)
		}
	}

	state := shared.GenerateID()
	handler := NewOAuthHandler(f.Config, state, path)
	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(handler)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting callback server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := f.Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if f.Open != nil {
		if err := f.Open(authURL); err != nil {
			logger.Warn("failed to open authorization URL", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case result := <-handler.Result():
		if result.Err != nil {
			return nil, result.Err
		}
		if result.Token == nil {
			return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
		}
		return result.Token, nil
	case err := <-serverErrors:
		return nil, fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrAuthFailed, timeout)
		}
		return nil, ctx.Err()
	}
}
