package main

import (
	"log/slog"

	"github.com/socialpost/postctl/internal/agent"
	"github.com/socialpost/postctl/internal/config"
	"github.com/socialpost/postctl/internal/idle"
	"github.com/socialpost/postctl/internal/session"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the local agent that keeps the session alive",
	Long: `Run a small HTTP server on the configured agent address. It refreshes the
session before it expires and logs out after the configured idle timeout.
Editors and scripts report activity with POST /activity and read the session
state with GET /session.`,
	RunE: withApp(runAgent, withMetrics()),
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, _ []string, a *app) error {
	options := []agent.ServerOption{
		agent.WithConfig(a.cfg),
		agent.WithSession(a.session),
		agent.WithVersion(version()),
		agent.WithRegistry(a.registry),
		agent.WithLogger(slog.Default()),
	}
	if a.cfg.Session.IdleTimeout > 0 {
		timer, err := idle.NewTimer(idle.WithTimeout(a.cfg.Session.IdleTimeout), idle.WithLogout(a.session.Logout))
		if err != nil {
			return err
		}
		a.client.OnActivity(timer.Reset)
		options = append(options, agent.WithIdleTimer(timer))
	}
	if a.cfg.Session.KeepaliveInterval > 0 {
		keepalive, err := session.NewKeepalive(
			session.WithInterval(a.cfg.Session.KeepaliveInterval),
			session.WithRefresher(a.client.Coordinator()),
			session.WithActiveCheck(a.session.HasSession),
		)
		if err != nil {
			return err
		}
		options = append(options, agent.WithJobs(keepalive))
	}
	server, err := agent.NewServer(options...)
	if err != nil {
		return err
	}
	a.configHandler.HandleChanges(func(cfg config.Config, err error) {
		if err != nil {
			slog.Error("AGENT", "message", "the changed configuration is invalid and was ignored", "error", err)
			return
		}
		if cfg.DebugMode || debugFlag {
			logLevel.Set(slog.LevelDebug)
		} else {
			logLevel.Set(slog.LevelInfo)
		}
	})
	a.configHandler.Watch()
	return server.Run(cmd.Context())
}
