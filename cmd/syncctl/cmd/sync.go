package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync <username>",
	Short: "Trigger a membership sync for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		appLogger.Info(cmd.Context(), "requesting sync", map[string]interface{}{
			"username": username, "force": syncForce,
		})

		result, err := apiClient().Sync(cmd.Context(), username, syncForce)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(result)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "ignore the sync reuse window")
	rootCmd.AddCommand(syncCmd)
}
