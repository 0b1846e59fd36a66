package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/chat-sync/internal/client"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/config"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/service"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/transport"
	pkgconfig "github.com/weiawesome/wes-io-live/chat-sync/pkg/config"
	pkglog "github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

func main() {
	configPath := flag.String("config", pkgconfig.GetEnv("CHATSYNC_CONFIG_PATH", "./config"), "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:     cfg.Log.Level,
		Pretty:    cfg.Log.Pretty || cfg.Log.Level == "debug",
		Component: "chat-sync",
	})
	logger := pkglog.L()

	logger.Info().
		Str("app_id", cfg.App.ID).
		Str("transport", cfg.Socket.Transport).
		Msg("starting chat sync")

	api, err := client.NewAPIClient(client.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create api client")
	}

	dialer, closeDialer := newDialer(cfg, logger)
	defer closeDialer()

	engine, err := service.NewSyncEngine(service.Options{
		AppID:     cfg.App.ID,
		Domain:    cfg.App.Domain,
		Token:     cfg.Identity.Token,
		Self:      cfg.SelfUser(),
		Recipient: cfg.RecipientUser(),
		API:       api,
		Dialer:    dialer,
		Viewport:  service.StaticViewport{Width: cfg.Viewport.Width, Breakpoint: cfg.Viewport.MobileBreakpoint},
		Presenter: newConsolePresenter(os.Stdout),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create sync engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	err = engine.Init(initCtx, service.InitOptions{})
	initCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize chat")
	}

	self, _ := engine.Identity()
	logger.Info().
		Str("user_id", self.ID).
		Int("rooms", len(engine.Rooms())).
		Str("selected_room", engine.SelectedRoom()).
		Msg("chat sync ready")

	shell := newShell(engine, os.Stdin, os.Stdout)
	shellDone := make(chan error, 1)
	go func() {
		shellDone <- shell.Run(ctx)
	}()

	// Wait for interrupt signal or end of input
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("received shutdown signal")
	case err := <-shellDone:
		if err != nil {
			logger.Error().Err(err).Msg("command loop exited with error")
		}
	}

	// Graceful shutdown
	logger.Info().Msg("shutting down chat sync")
	cancel()

	if err := engine.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close event channel")
	}

	logger.Info().Msg("chat sync stopped")
}

// newDialer builds the event channel dialer selected by configuration. The
// returned func releases resources owned by the dialer itself.
func newDialer(cfg *config.Config, logger zerolog.Logger) (transport.Dialer, func()) {
	var (
		dialer  transport.Dialer
		closeFn = func() {}
	)

	switch cfg.Socket.Transport {
	case config.TransportRedis:
		rd := transport.NewRedisDialer(transport.RedisConfig{
			Address:       cfg.Redis.Address,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			ChannelPrefix: cfg.Redis.ChannelPrefix,
		}, logger)
		dialer = rd
		closeFn = func() { rd.Close() }
		logger.Info().Str("address", cfg.Redis.Address).Str("prefix", cfg.Redis.ChannelPrefix).Msg("using redis event channel")
	default:
		dialer = transport.NewWSDialer(transport.WSConfig{
			URL:              cfg.Socket.URL,
			PingInterval:     cfg.Socket.PingInterval,
			PongWait:         cfg.Socket.PongWait,
			WriteWait:        cfg.Socket.WriteWait,
			HandshakeTimeout: cfg.Socket.HandshakeTimeout,
			MaxMessageSize:   cfg.Socket.MaxMessageSize,
		}, logger)
		logger.Info().Str("url", cfg.Socket.URL).Msg("using websocket event channel")
	}

	if cfg.Reconnect.Enabled {
		dialer = transport.NewReconnectingDialer(dialer, transport.ReconnectConfig{
			InitialInterval: cfg.Reconnect.InitialInterval,
			MaxInterval:     cfg.Reconnect.MaxInterval,
			MaxElapsedTime:  cfg.Reconnect.MaxElapsedTime,
		}, logger)
	}
	return dialer, closeFn
}
