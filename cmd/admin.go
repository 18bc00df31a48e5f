package cmd

import (
	"fmt"

	"github.com/gradebook/apiserver/internal/server"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Account administration",
}

var revokeAdmin bool

// promoteCmd flips the admin flag on a persisted account. Run it while the
// server is stopped; a running server keeps its in-memory copy.
var promoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grants (or with --revoke, removes) admin rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		app, err := server.NewApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		user, err := app.Users.SetAdmin(cmd.Context(), args[0], !revokeAdmin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is_admin=%t\n", user.Username, user.IsAdmin)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(promoteCmd)
	promoteCmd.Flags().BoolVar(&revokeAdmin, "revoke", false, "remove admin rights instead")
}
