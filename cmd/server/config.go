// cmd/server/config.go
package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/jason-s-yu/hustle/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	port           int
	allowedOrigins []string
	publicURL      string
	redisAddr      string
	redisDB        int
	historianQueue string
	logLevel       string
	outboxSize     int
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if _, err := logrus.ParseLevel(c.logLevel); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	if c.outboxSize < 1 {
		return fmt.Errorf("invalid --outbox-size (must be at least 1): %d", c.outboxSize)
	}
	if c.redisAddr != "" && c.historianQueue == "" {
		return errors.New("--historian-queue must be set when --redis-addr is")
	}
	if c.publicURL == "" {
		return errors.New("--public-url must not be empty")
	}
	return nil
}

func (c *Config) addr() string {
	return net.JoinHostPort(c.bind, strconv.Itoa(c.port))
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "hustle",
		Short:         "Realtime room server for the Hustle card game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: HUSTLE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 3001, "port to listen on (env: HUSTLE_PORT)")
	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", []string{"localhost:5173"}, "origin host patterns allowed to connect (env: HUSTLE_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.publicURL, "public-url", "http://localhost:5173", "client URL encoded into room QR codes (env: HUSTLE_PUBLIC_URL)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "redis address for the action history feed, empty to disable (env: HUSTLE_REDIS_ADDR)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: HUSTLE_REDIS_DB)")
	fs.StringVar(&cfg.historianQueue, "historian-queue", cache.DefaultQueueName, "redis list that receives room actions (env: HUSTLE_HISTORIAN_QUEUE)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error (env: HUSTLE_LOG_LEVEL)")
	fs.IntVar(&cfg.outboxSize, "outbox-size", 16, "outbound message queue length per connection (env: HUSTLE_OUTBOX_SIZE)")

	bindEnv(v, fs)

	cmd.AddCommand(newHistorianCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("hustle v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HUSTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// bindEnv lets HUSTLE_<FLAG> supply any flag not given on the command line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
