package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagServer   string
	flagToken    string
	flagLogLevel string
	flagPretty   bool
)

var rootCmd = &cobra.Command{
	Use:   "wbpeer",
	Short: "Command-line participant for the whiteboard relay",
	Long: `wbpeer joins a whiteboard session from the terminal. It shows the roster
and chat, sends chat lines typed on stdin and can take part in the call with
generated audio and video tracks.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "relay base URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token from the login command")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", true, "human readable logs")

	rootCmd.AddCommand(joinCmd, loginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
