package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/threadkeep/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Once   bool
	NoPush bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Keep the local replica in sync with the server",
		Long: `Keep the local replica converged with the server.

The replica is restored from the local database, then kept current by the
push connection and a periodic reconcile pull until interrupted.

Example:
  threadkeep sync --config threadkeep.yaml
  threadkeep sync --once`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single reconcile pull and exit")
	cmd.Flags().BoolVar(&opts.NoPush, "no-push", false, "poll only, without the push connection")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.cfg.RequireServer(); err != nil {
		return WrapExitError(ExitCommandError, "sync needs a server", err)
	}

	push := syncer.PushConfig{}
	if !opts.NoPush && !opts.Once {
		wsURL, err := s.cfg.PushURL()
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid push url", err)
		}
		push = syncer.PushConfig{
			URL:          wsURL,
			Token:        s.cfg.Token,
			BaseDelay:    s.cfg.Reconnect.BaseDelay,
			MaxDelay:     s.cfg.Reconnect.MaxDelay,
			MaxAttempts:  s.cfg.Reconnect.MaxAttempts,
			PingInterval: 30 * time.Second,
		}
	}

	ch, err := syncer.New(syncer.Config{
		Replica:      s.root,
		API:          s.client,
		Cursor:       s.durable,
		Push:         push,
		PollInterval: s.cfg.PollInterval,
		Metrics:      s.metrics,
		Logger:       s.logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start sync", err)
	}
	defer ch.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Once {
		if err := ch.ReconcileNow(ctx); err != nil {
			return WrapExitError(ExitFailure, "reconcile failed", err)
		}
		sum := syncSummary(s)
		return s.out.Emit(sum, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Synced: %d conversations, %d messages, %d members, %d users\n",
				sum.Conversations, sum.Messages, sum.Members, sum.Users)
			return err
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.cfg.MetricsAddr != "" {
		stop := serveMetrics(s.cfg.MetricsAddr, s.registry, s.logger)
		defer stop()
	}

	s.logger.Info("sync starting", "server", s.cfg.ServerURL, "push", push.URL != "", "poll_interval", s.cfg.PollInterval)
	fmt.Fprintln(cmd.OutOrStdout(), "Sync started. Press Ctrl-C to stop.")

	if err := ch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "sync error", err)
	}
	s.logger.Info("sync stopped gracefully")
	return nil
}

type summary struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
	Members       int `json:"members"`
	Users         int `json:"users"`
}

func syncSummary(s *session) summary {
	return summary{
		Conversations: s.root.Conversations().Len(),
		Messages:      s.root.Messages().Len(),
		Members:       s.root.Members().Len(),
		Users:         s.root.Users().Len(),
	}
}

// serveMetrics exposes /metrics on addr and returns a shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
