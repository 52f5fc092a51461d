package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/socialpost/postctl/internal/apiclient"
	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/config"
	"github.com/socialpost/postctl/internal/drafts"
	"github.com/socialpost/postctl/internal/navigation"
	"github.com/socialpost/postctl/internal/session"
	"github.com/socialpost/postctl/internal/transport"
	"github.com/socialpost/postctl/internal/upload"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// app holds everything a command needs, built from the configuration.
type app struct {
	configHandler *config.ConfigHandler
	cfg           config.Config
	tracker       *navigation.Tracker
	drafts        *drafts.Store
	client        *apiclient.Client
	session       *session.Manager
	registry      *prometheus.Registry
}

func loadConfig() (*config.ConfigHandler, config.Config, error) {
	ch := config.NewConfigHandler()
	cfg, err := ch.Config()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("loading the configuration failed: %w", err)
	}
	setupLogging(cfg)
	setupSentry(cfg)
	return ch, cfg, nil
}

type appOption func(*app) error

// withMetrics registers the API client metrics, only the agent exposes them.
func withMetrics() appOption {
	return func(a *app) error {
		a.registry = prometheus.NewRegistry()
		return nil
	}
}

func newApp(ctx context.Context, options ...appOption) (*app, error) {
	ch, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{configHandler: ch, cfg: cfg}
	for _, opt := range options {
		err := opt(a)
		if err != nil {
			return nil, err
		}
	}
	a.drafts, err = drafts.NewStore(drafts.WithConfig(ctx, cfg.Drafts))
	if err != nil {
		return nil, fmt.Errorf("opening the drafts store failed: %w", err)
	}
	jar, err := session.NewPersistentJar(ctx, cfg.API.Endpoint(), drafts.NewCookieStore(a.drafts))
	if err != nil {
		a.drafts.Close()
		return nil, fmt.Errorf("loading the saved session failed: %w", err)
	}
	a.tracker = navigation.NewTracker(navigation.WithLoginPath(cfg.Session.LoginPath))
	clientOptions := []apiclient.ClientOption{
		apiclient.WithConfig(cfg.API),
		apiclient.WithCookieJar(jar),
		apiclient.WithNavigator(a.tracker),
		apiclient.WithLogger(slog.Default()),
	}
	if a.registry != nil {
		metrics, err := transport.NewMetrics(a.registry)
		if err != nil {
			a.drafts.Close()
			return nil, err
		}
		clientOptions = append(clientOptions, apiclient.WithMetrics(metrics))
	}
	a.client, err = apiclient.NewClient(clientOptions...)
	if err != nil {
		a.drafts.Close()
		return nil, err
	}
	a.session, err = session.NewManager(
		session.WithAPI(a.client),
		session.WithNavigator(a.tracker),
		session.WithSessionCookieName(cfg.API.SessionCookieName),
	)
	if err != nil {
		a.drafts.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	err := a.drafts.Close()
	if err != nil {
		slog.Warn("closing the drafts store failed", "error", err)
	}
}

func (a *app) uploader() (*upload.Uploader, error) {
	return upload.NewUploader(upload.WithCredentialsRequester(a.client), upload.WithConfig(a.cfg.Upload))
}

// draftOwner returns the user the drafts belong to, 0 (anonymous) without a session.
func (a *app) draftOwner(ctx context.Context) (int, error) {
	if !a.session.HasSession() {
		return 0, nil
	}
	user, err := a.session.CurrentUser(ctx)
	if errors.Is(err, apierrors.ErrNotAuthenticated) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// withApp builds the app for a command and closes it afterwards.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error, options ...appOption) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), options...)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}

func printResult(w io.Writer, value any) error {
	if jsonOutput {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	err := encoder.Encode(value)
	if err != nil {
		return err
	}
	return encoder.Close()
}
