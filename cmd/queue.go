package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cadenza-player/cadenza/pkg/mpd"
)

// queueCmd represents the queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the play queue",
	RunE:  runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <uri>",
	Short: "Append a song or directory to the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueAdd,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the queue",
	RunE:  runQueueClear,
}

var rateCmd = &cobra.Command{
	Use:   "rate <0-10>",
	Short: "Rate the current song",
	Long: `Rate the current song from 0 to 10, stored as a sticker on the
daemon. A negative value removes the rating. Requires a daemon with
sticker support.`,
	Args: cobra.ExactArgs(1),
	RunE: runRate,
}

func init() {
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueClearCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(rateCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		songs, err := client.Queue(ctx)
		if err != nil {
			return err
		}
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		for _, song := range songs {
			marker := "  "
			if song.Pos == status.Song {
				marker = "> "
			}
			fmt.Printf("%s%3d  %s - %s\n", marker, song.Pos, song.Artist, song.DisplayName())
		}
		return nil
	})
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		return client.QueueAdd(ctx, args[0])
	})
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *mpd.Client) error {
		return client.QueueClear(ctx)
	})
}

func runRate(cmd *cobra.Command, args []string) error {
	rating, err := strconv.Atoi(args[0])
	if err != nil || rating > 10 {
		return fmt.Errorf("invalid rating %q: want 0-10", args[0])
	}

	return withClient(func(ctx context.Context, client *mpd.Client) error {
		song, err := client.CurrentSong(ctx)
		if err != nil {
			return err
		}
		if song == nil {
			return fmt.Errorf("nothing playing")
		}
		return client.Rate(ctx, song.File, rating)
	})
}
