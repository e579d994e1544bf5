package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/kleeedolinux/resocket/api"
	"github.com/kleeedolinux/resocket/auth"
	"github.com/kleeedolinux/resocket/config"
	"github.com/kleeedolinux/resocket/debug"
	"github.com/kleeedolinux/resocket/devserver"
	"github.com/kleeedolinux/resocket/socket"
	"github.com/kleeedolinux/resocket/socket/transport"
)

const userAgent = "resocket-cli"

type globalFlags struct {
	configPath string
	baseURL    string
	endpoint   string
	tokenFile  string
	redisAddr  string
	logLevel   string
}

type app struct {
	flags  globalFlags
	cfg    *config.Config
	tokens auth.Store
}

func Execute(ctx context.Context) error {
	log.Debug().Msg("resocket starting")
	return newRootCmd(&app{}).ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "resocket",
		Short:         "Quiz socket client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "server origin, e.g. https://quiz.example.com")
	pf.StringVar(&a.flags.endpoint, "endpoint", "", "socket path, e.g. /ws/team/4")
	pf.StringVar(&a.flags.tokenFile, "token-file", "", "where the bearer token is kept")
	pf.StringVar(&a.flags.redisAddr, "redis-addr", "", "keep the token in Redis instead of a file")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "trace, debug, info, warn or error")

	root.AddCommand(
		listenCmd(a),
		sendCmd(a),
		loginCmd(a),
		logoutCmd(a),
		serveCmd(a),
		fmtTimeCmd(),
	)
	return root
}

func (a *app) setup(flags *pflag.FlagSet) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}

	if flags.Changed("base-url") {
		cfg.BaseURL = a.flags.baseURL
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = a.flags.endpoint
	}
	if flags.Changed("token-file") {
		cfg.TokenFile = a.flags.tokenFile
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = a.flags.redisAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	level, err := debug.Level(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	a.setLoggers()

	a.cfg = cfg
	a.tokens, err = tokenStore(cfg)
	return err
}

// setLoggers hands the configured global logger to the library packages,
// which captured log.Logger before main replaced it.
func (a *app) setLoggers() {
	socket.SetLogger(log.Logger)
	api.SetLogger(log.Logger)
	auth.SetLogger(log.Logger)
	devserver.SetLogger(log.Logger)
}

func tokenStore(cfg *config.Config) (auth.Store, error) {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		return auth.NewRedisStore(client, cfg.Redis.Prefix), nil
	}

	path := cfg.TokenFile
	if path == "" {
		var err error
		if path, err = auth.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	return auth.NewFileStore(path), nil
}

func (a *app) newSocket(reg prometheus.Registerer, opts ...socket.ClientOption) *socket.Client {
	base := append(a.cfg.SocketOptions(),
		socket.WithTokenStore(a.tokens),
		socket.WithLogger(log.With().Str("component", "socket").Logger()),
		socket.WithWebSocketOptions(transport.WithHeaders(http.Header{"User-Agent": {userAgent}})),
	)
	if a.cfg.SendRate > 0 {
		base = append(base, socket.WithSendRateLimit(rate.Limit(a.cfg.SendRate), a.cfg.SendBurst))
	}
	if reg != nil {
		base = append(base, socket.WithMetrics(socket.NewMetrics(reg)))
	}
	return socket.NewClient(a.cfg.BaseURL, a.cfg.Endpoint, append(base, opts...)...)
}

func (a *app) newAPI() *api.Client {
	return api.NewClient(a.cfg.BaseURL, a.tokens)
}
