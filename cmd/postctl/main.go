package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logLevel *slog.LevelVar = new(slog.LevelVar)

var (
	configLocation string
	debugFlag      bool
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:   "postctl",
	Short: "Schedule and publish social media posts from the command line",
	Long: `postctl talks to the social post scheduler API.

It keeps your session alive between commands, refreshes it transparently
when it expires and replays the request that noticed the expiry.

Configuration is read from config.yaml and secret_config.yaml in
$CONFIG_LOCATION, ~/.postctl or the current directory. Every value can be
overridden with a POSTCTL_ environment variable, for example
POSTCTL_API_BASEURL=https://scheduler.example.com.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configLocation != "" {
			return os.Setenv("CONFIG_LOCATION", configLocation)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configLocation, "config-dir", "", "directory holding config.yaml (default: $CONFIG_LOCATION, ~/.postctl, .)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON instead of YAML")
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok && buildInfo != nil {
		return buildInfo.Main.Version
	}
	return ""
}

// setupLogging sends JSON logs to stderr, and to a rotated file when one is configured.
func setupLogging(cfg config.Config) {
	var out io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel})))
	if cfg.DebugMode || debugFlag {
		logLevel.Set(slog.LevelDebug)
	}
}

func setupSentry(cfg config.Config) {
	if !cfg.Monitoring.Sentry.Enabled {
		return
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              string(cfg.Monitoring.Sentry.Dsn),
		TracesSampleRate: cfg.Monitoring.Sentry.SampleRate,
		Environment:      cfg.Monitoring.Sentry.Environment,
		Release:          version(),
	})
	if err != nil {
		slog.Error("sentry initialization failed", "error", err)
	}
}

const reloginHint string = "Your session has ended. Run `postctl login` to sign in again."

// userFacingError turns session failures into the re-login hint. It reports whether the error was expected,
// expected errors are not sent to sentry.
func userFacingError(err error) (string, bool) {
	switch {
	case errors.Is(err, apierrors.ErrReauthenticationRequired), errors.Is(err, apierrors.ErrNotAuthenticated):
		return reloginHint, true
	case errors.Is(err, apierrors.ErrTemporaryPassword):
		return "You are still using a temporary password. Run `postctl choose-password` first.", true
	case errors.Is(err, apierrors.ErrForbiddenRole):
		return "This command is reserved to super admins.", true
	case errors.Is(err, apierrors.ErrDraftNotFound):
		return err.Error(), true
	}
	status := apierrors.StatusCode(err)
	return err.Error(), status >= 400 && status < 500
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
	// interrupting a command cancels its requests and a running agent shuts down gracefully
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	message, expected := userFacingError(err)
	if !expected {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
	}
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
