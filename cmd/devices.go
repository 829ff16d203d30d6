package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadenza-player/cadenza/internal/fft"
)

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices for the system-audio visualizer source",
	Long: `List the capture devices the system audio graph exposes.

Use one of the printed names as visualizer-device together with
mpd-visualizer-pcm-source: system-audio.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	names, err := fft.ListCaptureDevices()
	if err != nil {
		return fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No capture devices found.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
