// Package commands implements the rmacsctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient talks to the rmacsd operator API, initialized in
	// PersistentPreRunE.
	httpClient *apiClient

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the rmacsd operator API address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for rmacsctl.
var rootCmd = &cobra.Command{
	Use:   "rmacsctl",
	Short: "CLI client for the RMACS channel-selection daemon",
	Long:  "rmacsctl communicates with the rmacsd daemon over its HTTP+JSON operator API to inspect channel-quality state and trigger broadcasts.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		httpClient = newAPIClient("http://"+serverAddr, &http.Client{Timeout: 10 * time.Second})
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8090",
		"rmacsd operator API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(broadcastCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
