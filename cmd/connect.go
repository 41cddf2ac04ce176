package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/providers"
	"github.com/mixtape-app/mixtape/internal/server"
	"github.com/mixtape-app/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Connect links a provider account to a user via the OAuth authorization
// code flow. Apple Music skips OAuth and stores the pasted user token.
func (r *Runner) Connect(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	provider, err := models.ParseProvider(cmd.StringArg("provider"))
	if err != nil {
		return err
	}
	userID := cmd.String("user")

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	conn := &models.Connection{
		UserID:    userID,
		Provider:  provider,
		Connected: true,
	}

	switch provider {
	case models.ProviderAppleMusic:
		userToken := cmd.String("user-token")
		if userToken == "" {
			return fmt.Errorf("%w: --user-token is required for Apple Music", shared.ErrMissingArgument)
		}
		conn.AccessToken = userToken

	default:
		token, err := r.authorize(ctx, cmd, provider)
		if err != nil {
			return err
		}
		conn.AccessToken = token.AccessToken
		conn.RefreshToken = token.RefreshToken
		if !token.Expiry.IsZero() {
			expiry := token.Expiry.UTC()
			conn.ExpiresAt = &expiry
		}
	}

	if err := app.connections.Save(ctx, conn); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	r.logger.Info("service connected", "user", userID, "provider", provider)
	return r.writePlain("✓ %s connected for user %s\n", provider, userID)
}

// Disconnect revokes a linked provider account. The default keeps the
// connection row with its tokens cleared; --forget removes it entirely.
func (r *Runner) Disconnect(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	provider, err := models.ParseProvider(cmd.StringArg("provider"))
	if err != nil {
		return err
	}
	userID := cmd.String("user")

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	if cmd.Bool("forget") {
		if err := app.connections.Delete(ctx, userID, provider); err != nil {
			return err
		}
	} else if err := app.tokens.Disconnect(ctx, userID, provider); err != nil {
		return err
	}

	r.logger.Info("service disconnected", "user", userID, "provider", provider)
	return r.writePlain("✓ %s disconnected for user %s\n", provider, userID)
}

// ListConnections shows the user's linked services and their state.
func (r *Runner) ListConnections(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))
	userID := cmd.String("user")

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	conns, err := app.connections.List(ctx, userID)
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		return r.writePlain("No connected services for user %s\n", userID)
	}

	for _, conn := range conns {
		status := "disconnected"
		if conn.Connected {
			status = "connected"
		}
		if err := r.writePlain("%s: %s\n", conn.Provider, status); err != nil {
			return err
		}
	}
	return nil
}

// authorize runs the browser OAuth dance and waits for the local callback.
func (r *Runner) authorize(ctx context.Context, cmd *cli.Command, provider models.Provider) (*oauth2.Token, error) {
	var config *oauth2.Config
	switch provider {
	case models.ProviderSpotify:
		config = providers.SpotifyOAuthConfig(r.config.Providers.Spotify)
	case models.ProviderAmazonMusic:
		config = providers.AmazonOAuthConfig(r.config.Providers.AmazonMusic)
	default:
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, provider)
	}

	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %s credentials missing from config", shared.ErrMissingCredentials, provider)
	}

	state := uuid.NewString()
	handler := server.NewOAuthHandler(config, state)
	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline)

	r.writePlain("Opening browser for %s authorization...\n", provider)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
		r.writePlain("Visit this URL to authorize:\n%s\n", authURL)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	token, err := server.AwaitCallback(waitCtx, cmd.String("callback-addr"), handler)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	return token, nil
}
