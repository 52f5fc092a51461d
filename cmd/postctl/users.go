package main

import (
	"fmt"
	"strconv"

	"github.com/socialpost/postctl/internal/models"
	"github.com/spf13/cobra"
)

var userRole string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the users of the scheduler (super admins only)",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every user",
	RunE:  withApp(runUsersList),
}

var usersCreateCmd = &cobra.Command{
	Use:   "create EMAIL",
	Short: "Invite a user, the API mails them a temporary password",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runUsersCreate),
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update EMAIL",
	Short: "Change the role of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runUsersUpdate),
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete USER_ID",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runUsersDelete),
}

func init() {
	for _, cmd := range []*cobra.Command{usersCreateCmd, usersUpdateCmd} {
		cmd.Flags().StringVar(&userRole, "role", string(models.RoleUser), "one of SUPER_ADMIN, ADMIN, USER")
	}
	usersCmd.AddCommand(usersListCmd, usersCreateCmd, usersUpdateCmd, usersDeleteCmd)
	rootCmd.AddCommand(usersCmd)
}

func userFromArgs(email string) (models.User, error) {
	role, err := models.ParseRole(userRole)
	if err != nil {
		return models.User{}, err
	}
	return models.User{Email: email, Role: role}, nil
}

func runUsersList(cmd *cobra.Command, _ []string, a *app) error {
	_, err := a.session.RequireSuperAdmin(cmd.Context())
	if err != nil {
		return err
	}
	users, err := a.client.Users(cmd.Context())
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), users)
}

func runUsersCreate(cmd *cobra.Command, args []string, a *app) error {
	user, err := userFromArgs(args[0])
	if err != nil {
		return err
	}
	_, err = a.session.RequireSuperAdmin(cmd.Context())
	if err != nil {
		return err
	}
	err = a.client.CreateUser(cmd.Context(), user)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "User %s created\n", user.Email)
	return nil
}

func runUsersUpdate(cmd *cobra.Command, args []string, a *app) error {
	user, err := userFromArgs(args[0])
	if err != nil {
		return err
	}
	_, err = a.session.RequireSuperAdmin(cmd.Context())
	if err != nil {
		return err
	}
	err = a.client.UpdateUser(cmd.Context(), user)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "User %s updated\n", user.Email)
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string, a *app) error {
	userID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	admin, err := a.session.RequireSuperAdmin(cmd.Context())
	if err != nil {
		return err
	}
	if admin.ID == userID {
		return fmt.Errorf("you cannot delete your own account")
	}
	err = a.client.DeleteUser(cmd.Context(), userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "User %d deleted\n", userID)
	return nil
}
