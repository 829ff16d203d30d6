package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cadenza-player/cadenza/internal/artcache"
	"github.com/cadenza-player/cadenza/internal/config"
	"github.com/cadenza-player/cadenza/internal/fft"
	"github.com/cadenza-player/cadenza/internal/player"
	"github.com/cadenza-player/cadenza/internal/tui"
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Display a terminal UI for now playing",
	Long: `Display a terminal-based user interface with real-time updates.

The TUI includes:
- Now playing display with title, artist, and album
- Progress bar showing playback position
- Live FFT spectrum fed from MPD's FIFO output or the system audio graph
- Album and artist blurbs from the metadata providers

Press 'q' to quit.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func buildSource(cfg *config.Config, logger zerolog.Logger) (fft.Source, error) {
	switch cfg.Visualizer.Source {
	case "fifo":
		return fft.NewFIFOSource(fft.FIFOConfig{
			Path:   cfg.MPD.FIFOPath,
			Format: cfg.MPD.FIFOFormat,
			Logger: logger,
		})
	case "system-audio":
		return fft.NewCaptureSource(fft.CaptureConfig{
			Device: cfg.Visualizer.Device,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown visualizer source %q", cfg.Visualizer.Source)
	}
}

func fftConfig(cfg *config.Config) fft.Config {
	return fft.Config{
		WindowSize: cfg.Visualizer.FFTSamples,
		TargetFPS:  cfg.Visualizer.FPS,
		Bins:       cfg.Visualizer.SpectrumBins,
	}
}

func startVisualizer(engine *fft.Engine, cfg *config.Config, logger zerolog.Logger) {
	src, err := buildSource(cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Visualizer disabled")
		return
	}
	if err := engine.Restart(fftConfig(cfg), src); err != nil {
		logger.Warn().Err(err).Msg("Visualizer failed to start")
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The TUI owns the terminal, so logs go to the file only.
	logger := newLogger(cfg, false)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := newDaemonClient(cfg, logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.MPD.Address(), err)
	}
	defer client.Disconnect()

	chain := buildChain(cfg, logger)
	cache := artcache.New(cfg.CacheRoot, logger)
	p := player.New(player.Config{DownloadAlbumArt: cfg.MPD.DownloadAlbumArt}, client, chain, cache, logger)
	go p.Run(ctx)

	engine := fft.NewEngine(logger)
	startVisualizer(engine, cfg, logger)
	defer engine.Stop()

	// React to configuration edits while running: provider order
	// applies to the next lookup, bin-count changes apply to the next
	// frame, and everything else about the visualizer needs a restart.
	lastVis := cfg.Visualizer
	_, err = config.Watch(func(next *config.Config) {
		chain.SetOrder(next.Providers.Order)

		if next.Visualizer == lastVis {
			return
		}
		binsOnly := next.Visualizer
		binsOnly.SpectrumBins = lastVis.SpectrumBins
		if binsOnly == lastVis {
			engine.SetBins(next.Visualizer.SpectrumBins)
		} else {
			startVisualizer(engine, next, logger)
		}
		lastVis = next.Visualizer
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Config watch unavailable")
	}

	app := tui.New()
	app.SetControls(client)
	defer app.Stop()

	return app.Run(ctx, p.Updates(), engine.Frames())
}
