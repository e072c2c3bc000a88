package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oddsmith/arbiter/errors"
	"github.com/oddsmith/arbiter/logger"
	"github.com/oddsmith/arbiter/server/auth"
)

// UsersCmd represents the users command - API user management
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage API users",
	Long: `Manage API users and their access tokens.

Until the first user is created, the HTTP API runs open. Creating a
user claims the instance: every request from then on needs a token.

User commands:
  arbiter users add <username>           # Mint a viewer token
  arbiter users add <username> --admin   # Mint an admin token`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// UsersAddCmd creates a user and prints the access token
var UsersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an API user",
	Long: `Create an API user and print the generated access token.

The token is shown exactly once; only its hash is stored. Admins may
purge the watchlist, viewers get the read and trigger surface.

Examples:
  arbiter users add alice --admin
  arbiter users add bob`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, _ := cmd.Flags().GetBool("admin")
		return runUsersAdd(args[0], admin)
	},
}

func init() {
	UsersAddCmd.Flags().Bool("admin", false, "Grant the admin role")
	UsersCmd.AddCommand(UsersAddCmd)
}

func runUsersAdd(username string, admin bool) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	role := auth.RoleViewer
	if admin {
		role = auth.RoleAdmin
	}

	user, token, err := auth.NewUserStore(database, logger.Logger).Create(username, role)
	if err != nil {
		return errors.Wrapf(err, "failed to create user %s", username)
	}

	fmt.Printf("Created %s user %s (%s)\n\n", user.Role, user.Username, user.ID)
	fmt.Printf("Access token (shown once, store it now):\n  %s\n", token)
	return nil
}
