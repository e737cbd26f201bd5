// cmd/server/historian.go
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/hustle/internal/cache"
	"github.com/jason-s-yu/hustle/internal/historian"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type HistorianConfig struct {
	redisAddr     string
	redisDB       int
	queue         string
	out           string
	batchSize     int
	flushInterval time.Duration
	inactivity    time.Duration
	logLevel      string
}

func (c *HistorianConfig) validate() error {
	if c.redisAddr == "" {
		return errors.New("--redis-addr is required")
	}
	if c.queue == "" {
		return errors.New("--historian-queue must not be empty")
	}
	if c.batchSize < 1 {
		return errors.New("--batch-size must be at least 1")
	}
	if _, err := logrus.ParseLevel(c.logLevel); err != nil {
		return err
	}
	return nil
}

// newHistorianCmd builds the subcommand that drains the action feed the
// server publishes and appends it to a JSON lines file.
func newHistorianCmd() *cobra.Command {
	cfg := &HistorianConfig{}

	cmd := &cobra.Command{
		Use:   "historian",
		Short: "Drain the room action feed from redis into a JSON lines log.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return runHistorian(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)

	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address to read actions from (env: HUSTLE_REDIS_ADDR)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: HUSTLE_REDIS_DB)")
	fs.StringVar(&cfg.queue, "historian-queue", cache.DefaultQueueName, "redis list to drain (env: HUSTLE_HISTORIAN_QUEUE)")
	fs.StringVarP(&cfg.out, "out", "o", "-", "file to append records to, - for stdout (env: HUSTLE_OUT)")
	fs.IntVar(&cfg.batchSize, "batch-size", 20, "records written per flush (env: HUSTLE_BATCH_SIZE)")
	fs.DurationVar(&cfg.flushInterval, "flush-interval", 500*time.Millisecond, "maximum time a record waits before being written (env: HUSTLE_FLUSH_INTERVAL)")
	fs.DurationVar(&cfg.inactivity, "inactivity", 10*time.Minute, "idle time after which a room is recorded as abandoned (env: HUSTLE_INACTIVITY)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level (env: HUSTLE_LOG_LEVEL)")

	bindEnv(newViper(), fs)

	return cmd
}

func runHistorian(parent context.Context, cfg *HistorianConfig, stdout io.Writer) error {
	logger := logrus.New()
	level, _ := logrus.ParseLevel(cfg.logLevel)
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed, err := cache.ConnectActionLog(ctx, cache.Options{
		Addr:      cfg.redisAddr,
		DB:        cfg.redisDB,
		QueueName: cfg.queue,
	})
	if err != nil {
		return err
	}
	defer feed.Close()

	w := stdout
	if cfg.out != "-" {
		f, err := os.OpenFile(cfg.out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	logger.WithFields(logrus.Fields{"addr": cfg.redisAddr, "queue": feed.Queue(), "out": cfg.out}).Info("draining action feed")

	h := historian.New(feed, historian.NewJSONLinesSink(w), logger, historian.Options{
		BatchSize:  cfg.batchSize,
		FlushDelay: cfg.flushInterval,
		Inactivity: cfg.inactivity,
	})
	return h.Run(ctx)
}
