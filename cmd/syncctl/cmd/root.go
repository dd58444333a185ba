// Package cmd holds the syncctl command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hcommons/membersync/cmd/syncctl/client"
	"github.com/hcommons/membersync/log"
)

var (
	appLogger log.Logger

	serverURL string
	bearer    string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "syncctl is a CLI tool to interact with the membersync API",
	Long:  `A command-line interface for triggering membership syncs, browsing the member directory, and broadcasting logouts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		appLogger = log.NewZerologAdapter(level, true)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "membersync server base URL")
	rootCmd.PersistentFlags().StringVar(&bearer, "bearer", os.Getenv("MEMBERSYNC_BEARER"), "static service bearer token")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func apiClient() *client.Client {
	return client.New(serverURL, bearer)
}
