/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/cadenza-player/cadenza/pkg/mpd"
)

const defaultNowFormat = "{{.Artist}} - {{.Title}}"

// errNotPlaying maps to exit code 1 without printing anything. It is
// returned, not os.Exit'd, so deferred cleanup still runs.
var errNotPlaying = errors.New("not playing")

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the currently playing song",
	Long: `Query the daemon and display the currently playing song.

The output format is a Go template over the song. Available fields:
.Title, .Artist, .AlbumArtist, .Album, .File, .Date, .Duration

Exit codes:
  0 - A song is currently playing
  1 - Stopped, paused, or the daemon is unreachable`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	nowCmd.Flags().StringP("format", "f", defaultNowFormat, "Output format template")
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled)")
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	song, err := playingSong(ctx, client)
	if err != nil {
		if errors.Is(err, errNotPlaying) {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
		}
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	output, err := formatSong(song, format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width > 0 {
		output = padToWidth(output, width)
	}

	fmt.Println(output)
	return nil
}

// nowSource is the slice of the client the now command reads from.
type nowSource interface {
	Status(ctx context.Context) (*mpd.Status, error)
	CurrentSong(ctx context.Context) (*mpd.Song, error)
}

// playingSong returns the current song, or errNotPlaying when the
// daemon is stopped, paused, or has no current song.
func playingSong(ctx context.Context, c nowSource) (*mpd.Song, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query status: %w", err)
	}
	if status.State != mpd.StatePlaying {
		return nil, errNotPlaying
	}

	song, err := c.CurrentSong(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query current song: %w", err)
	}
	if song == nil {
		return nil, errNotPlaying
	}
	return song, nil
}

// formatSong applies the template to the song data
func formatSong(song *mpd.Song, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, song); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text // no padding requested
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		truncated := runewidth.Truncate(text, width-ellipsisWidth, "")
		result := truncated + ellipsis

		// Ensure we're exactly at the target width (in case truncate was imprecise)
		resultWidth := runewidth.StringWidth(result)
		if resultWidth < width {
			return result + strings.Repeat(" ", width-resultWidth)
		} else if resultWidth > width {
			return runewidth.Truncate(result, width, "")
		}
		return result
	} else if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	return text // exactly the right width
}
