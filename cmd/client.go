package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/cadenza-player/cadenza/internal/config"
	"github.com/cadenza-player/cadenza/internal/logging"
	"github.com/cadenza-player/cadenza/internal/secret"
	"github.com/cadenza-player/cadenza/pkg/mpd"
)

// newLogger builds the root logger from configuration.
func newLogger(cfg *config.Config, console bool) zerolog.Logger {
	return logging.New(logging.Config{
		File:    cfg.LogFile,
		Level:   cfg.LogLevel,
		Console: console,
	})
}

// newDaemonClient builds an MPD client from configuration. The
// password, if any, comes from the OS keyring.
func newDaemonClient(cfg *config.Config, logger zerolog.Logger) *mpd.Client {
	return mpd.NewClient(mpd.Config{
		Network:  cfg.MPD.Network(),
		Address:  cfg.MPD.Address(),
		Password: secret.GetPassword,
		Dial: func(network, address string) (mpd.Conn, error) {
			return net.Dial(network, address)
		},
		Logger: logger,
	})
}

// connect loads configuration and returns a connected client. The
// caller must Disconnect.
func connect(ctx context.Context) (*mpd.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	client := newDaemonClient(cfg, newLogger(cfg, false))
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.MPD.Address(), err)
	}
	return client, cfg, nil
}
