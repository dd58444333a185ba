package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	membersCursor string
	membersDir    string
)

var membersCmd = &cobra.Command{
	Use:     "members",
	Short:   "Browse the member directory",
	Aliases: []string{"member"},
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := apiClient().Members(cmd.Context(), membersCursor, membersDir)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(page)
	},
}

func init() {
	membersCmd.Flags().StringVar(&membersCursor, "cursor", "", "resume from an opaque page cursor")
	membersCmd.Flags().StringVar(&membersDir, "dir", "next", "page direction (next or prev)")
	rootCmd.AddCommand(membersCmd)
}
