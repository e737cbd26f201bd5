// cmd/server/serve.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/hustle/internal/broadcast"
	"github.com/jason-s-yu/hustle/internal/cache"
	"github.com/jason-s-yu/hustle/internal/game"
	"github.com/jason-s-yu/hustle/internal/handlers"
	"github.com/jason-s-yu/hustle/internal/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg *Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// newServer wires the room store, hub and session manager together. The
// action log is optional; when it is nil no history is recorded.
func newServer(cfg *Config, logger *logrus.Logger, actions *cache.ActionLog) *handlers.Server {
	hub := broadcast.NewHub(logger.WithField("component", "hub"))
	mgr := session.NewManager(game.NewRoomStore(), hub, logger.WithField("component", "session"))
	if actions != nil {
		mgr.Actions = actions
	}
	return &handlers.Server{
		Manager:        mgr,
		Hub:            hub,
		Logger:         logger,
		OriginPatterns: cfg.allowedOrigins,
		PublicURL:      cfg.publicURL,
		OutboxSize:     cfg.outboxSize,
	}
}

func serve(parent context.Context, cfg *Config) error {
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var actions *cache.ActionLog
	if cfg.redisAddr != "" {
		var err error
		actions, err = cache.ConnectActionLog(ctx, cache.Options{
			Addr:      cfg.redisAddr,
			DB:        cfg.redisDB,
			QueueName: cfg.historianQueue,
		})
		if err != nil {
			logger.WithField("addr", cfg.redisAddr).WithError(err).Warn("redis unavailable, action history disabled")
			actions = nil
		} else {
			defer actions.Close()
			logger.WithFields(logrus.Fields{"addr": cfg.redisAddr, "queue": actions.Queue()}).Info("action history enabled")
		}
	}

	s := newServer(cfg, logger, actions)

	srv := &http.Server{
		Addr:              cfg.addr(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	l, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"addr":    l.Addr().String(),
		"origins": cfg.allowedOrigins,
		"version": releaseVersion,
	}).Info("listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
