package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/skratchdot/open-golang/open"
	"github.com/socialpost/postctl/internal/models"
	"github.com/spf13/cobra"
)

var (
	accountPlatform     string
	accountClientID     string
	accountClientSecret string
	noBrowser           bool
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the social platform applications and connect pages",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the social accounts",
	RunE:  withApp(runAccountsList),
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a social platform application (super admins only)",
	RunE:  withApp(runAccountsCreate),
}

var accountsUpdateCmd = &cobra.Command{
	Use:   "update ACCOUNT_ID",
	Short: "Update the credentials of a social platform application (super admins only)",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runAccountsUpdate),
}

var accountsConnectCmd = &cobra.Command{
	Use:   "connect [ACCOUNT_ID]",
	Short: "Open the platform authorization page to connect your pages",
	Long: `Open the Facebook authorization page in your browser. Without an account
id the default application is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runAccountsConnect),
}

func init() {
	for _, cmd := range []*cobra.Command{accountsCreateCmd, accountsUpdateCmd} {
		cmd.Flags().StringVar(&accountPlatform, "platform", string(models.PlatformFacebook), "social platform")
		cmd.Flags().StringVar(&accountClientID, "client-id", "", "application client id")
		cmd.Flags().StringVar(&accountClientSecret, "client-secret", "", "application client secret")
		_ = cmd.MarkFlagRequired("client-id")
		_ = cmd.MarkFlagRequired("client-secret")
	}
	accountsConnectCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "only print the authorization url")
	accountsCmd.AddCommand(accountsListCmd, accountsCreateCmd, accountsUpdateCmd, accountsConnectCmd)
	rootCmd.AddCommand(accountsCmd)
}

// accountView keeps the application secret and the access token off the terminal.
type accountView struct {
	ID             int        `json:"id" yaml:"id"`
	Platform       string     `json:"platform" yaml:"platform"`
	AppClientID    string     `json:"appClientId" yaml:"appClientId"`
	Connected      bool       `json:"connected" yaml:"connected"`
	TokenExpired   bool       `json:"tokenExpired" yaml:"tokenExpired"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty" yaml:"tokenExpiresAt,omitempty"`
}

func newAccountView(account models.SocialAccount) accountView {
	return accountView{
		ID:             account.ID,
		Platform:       string(account.Platform),
		AppClientID:    account.AppClientID,
		Connected:      account.AccessToken != "",
		TokenExpired:   account.TokenExpired(),
		TokenExpiresAt: account.TokenExpiresAt,
	}
}

func runAccountsList(cmd *cobra.Command, _ []string, a *app) error {
	_, err := a.session.RequirePasswordChosen(cmd.Context())
	if err != nil {
		return err
	}
	accounts, err := a.client.SocialAccounts(cmd.Context())
	if err != nil {
		return err
	}
	views := make([]accountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, newAccountView(account))
	}
	return printResult(cmd.OutOrStdout(), views)
}

func accountFromFlags() models.SocialAccount {
	return models.SocialAccount{
		Platform:        models.SocialPlatform(accountPlatform),
		AppClientID:     accountClientID,
		AppClientSecret: accountClientSecret,
	}
}

func runAccountsCreate(cmd *cobra.Command, _ []string, a *app) error {
	_, err := a.session.RequireSuperAdmin(cmd.Context())
	if err != nil {
		return err
	}
	created, err := a.client.CreateSocialAccount(cmd.Context(), accountFromFlags())
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), newAccountView(created))
}

func runAccountsUpdate(cmd *cobra.Command, args []string, a *app) error {
	accountID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", args[0], err)
	}
	_, err = a.session.RequireSuperAdmin(cmd.Context())
	if err != nil {
		return err
	}
	account := accountFromFlags()
	account.ID = accountID
	updated, err := a.client.UpdateSocialAccount(cmd.Context(), account)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), newAccountView(updated))
}

func runAccountsConnect(cmd *cobra.Command, args []string, a *app) error {
	_, err := a.session.RequirePasswordChosen(cmd.Context())
	if err != nil {
		return err
	}
	var authURL string
	if len(args) == 1 {
		accountID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id %q: %w", args[0], err)
		}
		authURL, err = a.client.FacebookAccountAuthURL(cmd.Context(), accountID)
		if err != nil {
			return err
		}
	} else {
		authURL, err = a.client.FacebookAuthURL(cmd.Context())
		if err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), authURL)
	if noBrowser {
		return nil
	}
	err = open.Run(authURL)
	if err != nil {
		slog.Warn("could not open a browser", "error", err)
		fmt.Fprintln(cmd.ErrOrStderr(), "Open the address above in your browser to continue.")
	}
	return nil
}
