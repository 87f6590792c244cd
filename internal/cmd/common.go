package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/taskbridge/internal/auth"
	"github.com/Iron-Ham/taskbridge/internal/cloud"
	"github.com/Iron-Ham/taskbridge/internal/config"
	"github.com/Iron-Ham/taskbridge/internal/environment"
	"github.com/Iron-Ham/taskbridge/internal/gitops"
	"github.com/Iron-Ham/taskbridge/internal/logging"
)

// app carries what every command builds from the loaded configuration.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) Close() {
	_ = a.logger.Close()
}

func (a *app) resolver() *auth.Resolver {
	return auth.NewResolver(
		auth.WithLogger(a.logger),
		auth.WithDebug(a.cfg.Logging.Debug),
		auth.WithManagerFactory(func(home string) auth.Manager {
			return a.fileManager(home)
		}),
	)
}

func (a *app) fileManager(home string) *auth.FileManager {
	return auth.NewFileManager(home,
		auth.WithRefreshURL(a.cfg.Auth.RefreshURL),
		auth.WithClientID(a.cfg.Auth.ClientID),
		auth.WithManagerLogger(a.logger),
	)
}

func (a *app) cloudConfig() cloud.Config {
	return cloud.Config{
		BaseURL:     a.cfg.Cloud.BaseURL,
		BearerToken: a.cfg.Auth.BearerToken,
		AccountID:   a.cfg.Auth.AccountID,
		UserAgent:   a.cfg.Cloud.UserAgent,
		Mock:        a.cfg.Cloud.Mock,
		Home:        a.cfg.Auth.Home,
		Originator:  a.cfg.Engine.Originator,
		Timeout:     a.cfg.Cloud.Timeout(),
	}
}

// backend builds the task backend. Commands that act on tasks require a
// credential home; environment discovery does not.
func (a *app) backend(ctx context.Context, homeOptional bool) (cloud.Backend, error) {
	opts := []cloud.BackendOption{
		cloud.WithResolver(a.resolver()),
		cloud.WithLogger(a.logger),
	}
	if homeOptional {
		opts = append(opts, cloud.WithOptionalHome())
	}
	return cloud.NewBackend(ctx, a.cloudConfig(), opts...)
}

// environments aggregates environments for the checkout in the current
// directory.
func (a *app) environments(ctx context.Context) ([]environment.Row, error) {
	backend, err := a.backend(ctx, true)
	if err != nil {
		return nil, err
	}
	agg := environment.NewAggregator(gitops.New(""), backend,
		environment.WithParallelism(a.cfg.Cloud.ParallelQueries),
		environment.WithLogger(a.logger),
	)
	return agg.List(ctx), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// isTerminal reports whether w is a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addJSONFlag(cmd *cobra.Command, target *bool) {
	cmd.Flags().BoolVar(target, "json", false, "print JSON instead of a table")
}
