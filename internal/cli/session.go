package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/threadkeep/internal/api"
	"github.com/roach88/threadkeep/internal/config"
	"github.com/roach88/threadkeep/internal/durable"
	"github.com/roach88/threadkeep/internal/metrics"
	"github.com/roach88/threadkeep/internal/root"
)

// session is one opened replica plus everything wired around it.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      *OutputFormatter
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	durable  *durable.Store
	client   *api.Client // nil when no server is configured
	root     *root.Root
}

// openSession loads config, opens the durable store and restores the
// replica from it. The returned session must be closed.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load env file", err)
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.UserID != "" {
		cfg.UserID = opts.UserID
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	logger.Debug("opening database", "path", cfg.Database)
	st, err := durable.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	deps := root.Deps{
		Durable:  st,
		Logger:   logger,
		Metrics:  m,
		MemoSize: cfg.MemoSize,
	}
	var client *api.Client
	if cfg.ServerURL != "" {
		client = api.New(cfg.ServerURL, api.WithToken(cfg.Token), api.WithLogger(logger))
		deps.API = client
	}
	r, err := root.New(deps)
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create replica", err)
	}
	if err := r.LoadFromDurable(cmd.Context()); err != nil {
		// Rows that fail to decode are skipped; the rest of the replica is usable.
		logger.Warn("replica restored with errors", "error", err)
	}

	return &session{
		cfg:      cfg,
		logger:   logger,
		out:      newFormatter(cmd, opts),
		registry: registry,
		metrics:  m,
		durable:  st,
		client:   client,
		root:     r,
	}, nil
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// requireUser returns the acting user id.
func (s *session) requireUser() (string, error) {
	if s.cfg.UserID == "" {
		return "", NewExitError(ExitCommandError, "user_id must be set (config, THREADKEEP_USER_ID or --user)")
	}
	return s.cfg.UserID, nil
}

// close drains pending writes and releases the database.
func (s *session) close() {
	s.root.Close()
	for _, err := range s.root.PersistenceErrors() {
		s.logger.Error("replica write failed", "error", err)
	}
	if err := s.durable.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// txError reports a refused transaction on the output and maps the
// failure to an exit error.
func (s *session) txError(err error) error {
	var pe *root.PreconditionError
	if errors.As(err, &pe) {
		if werr := s.out.Refuse(pe); werr != nil {
			s.logger.Warn("write refusal", "error", werr)
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("refused (%s)", pe.Code), err)
	}
	return WrapExitError(ExitCommandError, "transaction failed", err)
}
