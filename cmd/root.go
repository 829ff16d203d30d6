/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cadenza",
	Short: "MPD client with metadata, artwork, and a spectrum TUI",
	Long: `cadenza is a client for the Music Player Daemon.

It controls playback over MPD's line protocol, enriches the current
song with metadata from MusicBrainz, Last.fm, and LRCLIB, caches album
artwork on disk, and renders a terminal UI with a live FFT spectrum fed
from MPD's FIFO output or the system audio graph.

It also provides CLI commands to query and control the daemon, useful
for scripting and status bars.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
