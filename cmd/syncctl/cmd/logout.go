package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var logoutAllCmd = &cobra.Command{
	Use:   "logout-all",
	Short: "Broadcast a logout to every configured endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := apiClient().LogoutAll(cmd.Context())
		if err != nil {
			return err
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(logoutAllCmd)
}
