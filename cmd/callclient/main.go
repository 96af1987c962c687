// Command callclient is a terminal client for the companion call service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL = "http://localhost:8081"

func main() {
	rootCmd := &cobra.Command{
		Use:   "callclient",
		Short: "Talk to an AI companion over a simulated video call",
		Long: `callclient drives the companion call service from a terminal.

  callclient companions          List the available companions
  callclient call <companionId>  Start a call and chat with the companion
  callclient calls               List live calls on the server

During a call, type a message and press enter to chat. Commands:
  /mute /video /captions /chat /fullscreen   toggle a control
  /ping                                      check the connection
  /end                                       hang up`,
		SilenceUsage: true,
	}

	if env := os.Getenv("CALL_SERVER_URL"); env != "" {
		serverURL = env
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", serverURL, "Base URL of the call service")

	rootCmd.AddCommand(companionsCmd(), callsCmd(), callCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
