package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cadenza-player/cadenza/internal/secret"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the daemon password",
	Long: `Manage the MPD password.

The password is kept in the operating system's keyring, never in the
configuration file. It is sent to the daemon on every connect.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the daemon password in the keyring",
	RunE:  runAuthSet,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the daemon password from the keyring",
	RunE:  runAuthClear,
}

func init() {
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authClearCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	fmt.Print("MPD password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		return fmt.Errorf("empty password; use 'cadenza auth clear' to remove one")
	}

	if err := secret.SetPassword(password); err != nil {
		return err
	}
	fmt.Println("Password stored.")
	return nil
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	if err := secret.ClearPassword(); err != nil {
		return err
	}
	fmt.Println("Password cleared.")
	return nil
}
