package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadenza-player/cadenza/pkg/mpd"
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Resume playback",
	Long:  `Resume playback. If stopped or paused, starts playing the current queue position.`,
	RunE:  runPlay,
}

// pauseCmd represents the pause command
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	Long:  `Pause playback. Pauses the currently playing song.`,
	RunE:  runPause,
}

// playpauseCmd represents the playpause command
var playpauseCmd = &cobra.Command{
	Use:   "playpause",
	Short: "Toggle play/pause",
	Long:  `Toggle between play and pause. If playing, pauses. If paused or stopped, resumes.`,
	RunE:  runPlayPause,
}

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	RunE:  runStop,
}

// nextCmd represents the next command
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next song",
	RunE:  runNext,
}

// prevCmd represents the prev command
var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go back to the previous song",
	RunE:  runPrev,
}

// seekCmd represents the seek command
var seekCmd = &cobra.Command{
	Use:   "seek <position>",
	Short: "Seek within the current song",
	Long: `Seek within the current song.

The position is in seconds, absolute by default. A leading + or -
seeks relative to the current position:

  cadenza seek 90    jump to 1:30
  cadenza seek +10   forward ten seconds
  cadenza seek -10   back ten seconds`,
	Args: cobra.ExactArgs(1),
	RunE: runSeek,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(playpauseCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(prevCmd)
	rootCmd.AddCommand(seekCmd)
}

// withClient runs f against a connected client with a command timeout.
func withClient(f func(ctx context.Context, client *mpd.Client) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	return f(ctx, client)
}

func runPlay(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		return client.Play(ctx)
	})
}

func runPause(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		return client.Pause(ctx, true)
	})
}

func runPlayPause(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		switch status.State {
		case mpd.StatePlaying:
			return client.Pause(ctx, true)
		case mpd.StatePaused:
			return client.Pause(ctx, false)
		default:
			return client.Play(ctx)
		}
	})
}

func runStop(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		return client.Stop(ctx)
	})
}

func runNext(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		return client.Next(ctx)
	})
}

func runPrev(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		return client.Previous(ctx)
	})
}

func runSeek(cmd *cobra.Command, args []string) error {
	arg := args[0]
	relative := strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-")
	seconds, err := strconv.ParseFloat(strings.TrimPrefix(arg, "+"), 64)
	if err != nil {
		return fmt.Errorf("invalid position %q", arg)
	}
	offset := time.Duration(seconds * float64(time.Second))

	return withClient(func(ctx context.Context, client *mpd.Client) error {
		pos := offset
		if relative {
			status, err := client.Status(ctx)
			if err != nil {
				return err
			}
			pos = status.Elapsed + offset
			if pos < 0 {
				pos = 0
			}
		}
		return client.SeekCur(ctx, pos)
	})
}
