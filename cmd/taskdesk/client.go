package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/courtregistry/taskdesk"
)

// session wraps a client and the resources it holds for one command run.
type session struct {
	*taskdesk.Client
	logger *slog.Logger
	rdb    redis.UniversalClient
}

func (s *session) Close() {
	if jar, ok := s.HTTPClient().Jar.(interface{ Err() error }); ok {
		if err := jar.Err(); err != nil {
			s.logger.Warn("refresh cookie not saved", "err", err)
		}
	}
	s.Client.Close()
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
}

// persistent reports whether the session outlives this process.
func (s *session) persistent() bool {
	return s.rdb != nil
}

// newLogger returns a debug text logger when verbose, and JSON at info
// level otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if verbose {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func openSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	logger := newLogger(os.Stderr, cmd.Bool("verbose"))

	cfg, err := taskdesk.LoadEnv(ctx, taskdesk.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if baseURL := cmd.String("base-url"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("no portal URL: set --base-url or TASKDESK_BASE_URL")
	}

	s := &session{logger: logger}
	b := taskdesk.New().
		WithConfig(cfg).
		WithLogger(logger).
		OnSessionEnded(func(ctx context.Context, end taskdesk.SessionEnd) {
			logger.WarnContext(ctx, "signed out", "reason", end.Reason, "user", end.UserID)
		})

	if addr := cmd.String("redis-addr"); addr != "" {
		s.rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			_ = s.rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", addr, err)
		}
		b.WithRedis(s.rdb)
	}

	s.Client, err = b.Build()
	if err != nil {
		if s.rdb != nil {
			_ = s.rdb.Close()
		}
		return nil, err
	}
	return s, nil
}

// withSession runs fn with an open session and explains expired sessions.
func withSession(fn func(ctx context.Context, cmd *cli.Command, s *session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		err = fn(ctx, cmd, s)
		switch {
		case errors.Is(err, taskdesk.ErrSessionExpired):
			return fmt.Errorf("session expired, run `taskdesk login` again: %w", err)
		case errors.Is(err, taskdesk.ErrNotAuthenticated):
			return errors.New("not signed in, run `taskdesk login`")
		}
		return err
	}
}
